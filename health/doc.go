// Package health tracks the health of the running pieces of a relay or
// replay process and serves the combined result over HTTP.
//
// A Status has one of three levels: healthy, degraded or unhealthy.
// Components either push their status into a Monitor:
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("gateway", "accepting events")
//
// or register a Check that is evaluated whenever health is read:
//
//	monitor.AddCheck("scheduler", func() health.Status {
//	    return health.NewHealthy("scheduler", sched.State().String())
//	})
//
// AggregateHealth folds everything into one Status: any unhealthy part
// makes the whole unhealthy, otherwise any degraded part makes it degraded.
//
// Handler serves the aggregate as JSON, with 503 when it is unhealthy and
// 200 otherwise. Error text placed in a Status through FromError has URLs,
// paths, addresses and credentials removed, since the endpoint is usually
// reachable without authentication.
package health
