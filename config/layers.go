package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360/semevents/errors"
)

// Limits on configuration layers and environment overrides.
const (
	maxLayerSize  = 1 << 20
	maxLayerDepth = 16
	maxEnvLen     = 4096
)

// layerFormat returns "json" or "yaml" for a layer path, by extension.
func layerFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", errors.Configf("layer %s: only .json, .yaml or .yml files are loaded", path)
	}
}

// checkLayerPath rejects unsupported extensions and relative paths
// escaping the working directory.
func checkLayerPath(path string) error {
	if path == "" {
		return errors.Configf("empty layer path")
	}
	if !filepath.IsAbs(path) && !filepath.IsLocal(path) {
		return errors.Configf("layer %s resolves outside the working directory", path)
	}
	_, err := layerFormat(path)
	return err
}

// readLayer reads one configuration layer. The file must be regular and
// at most maxLayerSize bytes.
func readLayer(path string) ([]byte, error) {
	if err := checkLayerPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMissingConfig, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Configf("layer %s is not a regular file", path)
	}
	if info.Size() > maxLayerSize {
		return nil, errors.Configf("layer %s is %d bytes, limit %d", path, info.Size(), maxLayerSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMissingConfig, err)
	}
	return data, nil
}

// writeLayer saves data readable by the owner only.
func writeLayer(path string, data []byte) error {
	if err := checkLayerPath(path); err != nil {
		return err
	}
	if len(data) > maxLayerSize {
		return errors.Configf("encoded configuration is %d bytes, limit %d", len(data), maxLayerSize)
	}
	return os.WriteFile(path, data, 0o600)
}

// knownSection reports whether name is a top-level key of Config.
func knownSection(name string) bool {
	switch name {
	case "version", "source", "replay", "publishers", "nats", "gateway", "authz", "metrics", "log":
		return true
	}
	return false
}

// checkLayer validates a decoded layer: top-level keys must name a Config
// section and nesting stays within maxLayerDepth. Applies to JSON and YAML
// layers alike.
func checkLayer(raw map[string]any) error {
	for name, v := range raw {
		if !knownSection(name) {
			return errors.Configf("unknown section %q", name)
		}
		if err := checkDepth(v, 2); err != nil {
			return errors.Configf("section %s: %v", name, err)
		}
	}
	return nil
}

func checkDepth(v any, depth int) error {
	var children []any
	switch t := v.(type) {
	case map[string]any:
		for _, c := range t {
			children = append(children, c)
		}
	case []any:
		children = t
	default:
		return nil
	}
	if depth > maxLayerDepth {
		return fmt.Errorf("nesting deeper than %d", maxLayerDepth)
	}
	for _, c := range children {
		if err := checkDepth(c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// envRules check override values beyond the generic limits, keyed by the
// suffix after the prefix.
var envRules = map[string]func(string) error{
	"_NATS_URL":       checkNATSServers,
	"_GATEWAY_LISTEN": checkListenAddr,
	"_LOG_LEVEL": func(v string) error {
		_, err := ParseLevel(v)
		return err
	},
}

// checkEnv validates one override value.
func checkEnv(key, suffix, value string) error {
	if len(value) > maxEnvLen {
		return errors.Configf("%s is %d bytes, limit %d", key, len(value), maxEnvLen)
	}
	if strings.ContainsRune(value, 0) {
		return errors.Configf("%s contains a NUL byte", key)
	}
	if rule, ok := envRules[suffix]; ok {
		if err := rule(value); err != nil {
			return errors.Configf("%s: %v", key, err)
		}
	}
	return nil
}

// checkNATSServers accepts a comma separated list of nats:// or tls:// URLs.
func checkNATSServers(value string) error {
	for _, server := range strings.Split(value, ",") {
		u, err := url.Parse(strings.TrimSpace(server))
		if err != nil {
			return err
		}
		if u.Scheme != "nats" && u.Scheme != "tls" {
			return fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("missing host in %q", server)
		}
	}
	return nil
}

func checkListenAddr(value string) error {
	_, _, err := net.SplitHostPort(value)
	return err
}
