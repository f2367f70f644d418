package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/publisher/natspub"
	"github.com/c360/semevents/scheduler"
	"github.com/c360/semevents/source"
)

// DefaultEnvPrefix prefixes environment overrides
const DefaultEnvPrefix = "SEMEVENTS"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  DefaultEnvPrefix,
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	base, err := toMap(Defaults())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		base = deepMergeMaps(base, raw)
	}

	cfg, err := fromMap(base)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Loader", "Load", "decode configuration")
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	sc := scheduler.DefaultConfig()
	gc := gatewayDefaults()
	return &Config{
		Replay: ReplayConfig{
			TimeScale:    sc.TimeScale,
			Period:       Duration(sc.Period),
			StartupDelay: Duration(sc.StartupDelay),
			Workers:      sc.Workers,
			QueueSize:    sc.QueueSize,
			StopTimeout:  Duration(sc.StopTimeout),
		},
		Source: SourceConfig{
			ChunkSize: 4096,
			Synthetic: SyntheticConfig{Kind: source.KindJSON, Interval: Duration(time.Second)},
		},
		Publishers: PublishersConfig{
			NATS: NATSPublisherConfig{Prefix: natspub.DefaultPrefix},
			Log:  LogPublisherConfig{Level: "info"},
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			ClientName:    "semevents",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Gateway: gc,
		Authz:   AuthzConfig{BasicRealm: "semevents"},
		Metrics: MetricsConfig{Listen: ":9090", Path: "/metrics"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

func gatewayDefaults() GatewayConfig {
	return GatewayConfig{
		Listen:         ":9000",
		Path:           "/events/publish",
		MaxRequestSize: 1024 * 1024,
		ChunkSize:      4096,
		RelayTimeout:   Duration(30 * time.Second),
		CORSOrigins:    []string{},
	}
}

// loadRaw loads a JSON or YAML layer as a map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readLayer(path)
	if err != nil {
		return nil, err
	}
	format, err := layerFormat(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if format == "yaml" {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = decodeJSON(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}
	if err := checkLayer(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := decodeJSON(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeJSON keeps numbers as json.Number so large integers survive merging
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}
	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"_SOURCE_ID":      &cfg.Replay.SourceID,
		"_SOURCE_PATH":    &cfg.Source.Path,
		"_DISTRIBUTION":   &cfg.Replay.Distribution,
		"_NATS_URL":       &cfg.NATS.URL,
		"_NATS_USERNAME":  &cfg.NATS.Username,
		"_NATS_PASSWORD":  &cfg.NATS.Password,
		"_NATS_TOKEN":     &cfg.NATS.Token,
		"_GATEWAY_LISTEN": &cfg.Gateway.Listen,
		"_RELAY_ID":       &cfg.Gateway.RelayID,
		"_LOG_LEVEL":      &cfg.Log.Level,
	}
	for suffix, field := range strs {
		key := l.envPrefix + suffix
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := checkEnv(key, suffix, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "check override")
		}
		*field = val
	}

	if val := os.Getenv(l.envPrefix + "_TIME_SCALE"); val != "" {
		scale, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return errors.Configf("%s_TIME_SCALE: %v", l.envPrefix, err)
		}
		cfg.Replay.TimeScale = scale
	}
	return nil
}

// SaveToFile saves the configuration as JSON or YAML, chosen by extension
func (c *Config) SaveToFile(path string) error {
	var data []byte
	format, err := layerFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case "yaml":
		var m map[string]any
		if m, err = toMap(c); err == nil {
			data, err = yaml.Marshal(m)
		}
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode configuration")
	}
	return writeLayer(path, data)
}
