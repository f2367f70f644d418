package main

import (
	"github.com/c360/semevents/health"
	"github.com/c360/semevents/natsclient"
	"github.com/c360/semevents/scheduler"
)

func schedulerCheck(s *scheduler.Scheduler) health.Check {
	return func() health.Status {
		switch state := s.State(); state {
		case scheduler.StateRunning:
			return health.NewHealthy("scheduler", "replaying")
		case scheduler.StateStopped:
			return health.NewHealthy("scheduler", "replay finished")
		default:
			return health.NewDegraded("scheduler", state.String())
		}
	}
}

func natsCheck(c *natsclient.Client) health.Check {
	return func() health.Status {
		switch status := c.Status(); status {
		case natsclient.StatusConnected:
			return health.NewHealthy("nats", "connected")
		case natsclient.StatusConnecting, natsclient.StatusReconnecting:
			return health.NewDegraded("nats", status.String())
		default:
			return health.NewUnhealthy("nats", status.String())
		}
	}
}
