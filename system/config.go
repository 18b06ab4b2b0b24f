package system

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from an optional YAML file and
// overridable by CLI flags.
type Config struct {
	// ZeekConfig is the zeek-config binary used for prefix discovery.
	ZeekConfig string `yaml:"zeek_config"`
	// Prefixes are extra script search prefixes in addition to the
	// discovered ones.
	Prefixes []string `yaml:"prefixes"`
	// LogLevel is a zap level string: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// LoadConfig reads a YAML config file. A missing file yields the zero
// config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
