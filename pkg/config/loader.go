package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envRef matches ${VAR} and ${VAR:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load decodes the YAML file at filePath into out after expanding
// environment references. Keys missing from the file leave out untouched.
func Load(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: operator supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(bytes.NewReader(data), out)
}

// Decode is Load for an already open reader.
func Decode(r io.Reader, out interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(ExpandEnv(data), out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// LoadSyncConfig reads filePath on top of the agency defaults and
// validates the result.
func LoadSyncConfig(filePath, name string) (*SyncConfig, error) {
	cfg := NewSyncConfig(name)
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return cfg, nil
}

// ExpandEnv replaces environment references. An unset variable without
// a fallback expands to the empty string.
func ExpandEnv(content []byte) []byte {
	return envRef.ReplaceAllFunc(content, func(ref []byte) []byte {
		m := envRef.FindSubmatch(ref)
		if v, ok := os.LookupEnv(string(m[1])); ok && v != "" {
			return []byte(v)
		}
		return m[2]
	})
}
