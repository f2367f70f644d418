// Package config loads the semevents configuration.
//
// # Core Components
//
// Config: the complete configuration with one section per concern: the
// event source, the replay scheduler, the publishers, the NATS connection,
// the publish gateway, authorization, metrics and logging. Sections
// translate into the configuration types of the packages they drive, for
// example Config.SchedulerConfig.
//
// Loader: loads configuration with layer merging (base + overrides) and
// environment variable overrides for flexible deployment scenarios. Layers
// are JSON (.json) or YAML (.yaml, .yml) files.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.yaml") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Only keys present in a layer override earlier values, so an override file
// can be as small as:
//
//	replay:
//	  time_scale: 10
//
// # Durations
//
// Duration fields accept Go duration strings ("250ms", "10s") or a day
// suffix ("14d"). Numbers are taken as nanoseconds.
//
// # Environment Overrides
//
// Variables prefixed with SEMEVENTS_ override loaded values:
//
//	SEMEVENTS_SOURCE_ID        replay.source_id
//	SEMEVENTS_SOURCE_PATH      source.path
//	SEMEVENTS_TIME_SCALE       replay.time_scale
//	SEMEVENTS_DISTRIBUTION     replay.distribution
//	SEMEVENTS_NATS_URL         nats.url
//	SEMEVENTS_NATS_USERNAME    nats.username
//	SEMEVENTS_NATS_PASSWORD    nats.password
//	SEMEVENTS_NATS_TOKEN       nats.token
//	SEMEVENTS_GATEWAY_LISTEN   gateway.listen
//	SEMEVENTS_RELAY_ID         gateway.relay_id
//	SEMEVENTS_LOG_LEVEL        log.level
//
// # TLS
//
// The gateway listener and each HTTP or WebSocket publisher take a tls
// block:
//
//	gateway:
//	  tls:
//	    enabled: true
//	    cert_file: /etc/semevents/relay.pem
//	    key_file: /etc/semevents/relay-key.pem
//	    mtls:
//	      enabled: true
//	      client_ca_files: [/etc/semevents/clients-ca.pem]
//	      require_client_cert: true
//	publishers:
//	  http:
//	    - url: https://streams.example.com/events/publish
//	      tls:
//	        ca_files: [/etc/semevents/streams-ca.pem]
//
// # Security
//
// Layers must be regular .json, .yaml or .yml files of at most 1MB, and a
// relative path may not leave the working directory. Every top-level key
// must name a section, and nesting is bounded for both formats.
// Overrides are length checked; NATS_URL, GATEWAY_LISTEN and LOG_LEVEL
// values are parsed before they replace file values.
package config
