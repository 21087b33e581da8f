package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the YAML configuration for the executables.
type Config struct {
	DataPath      string `yaml:"dataPath"`
	MinimumFreeGB int    `yaml:"minimumFreeGB"`
	LogLevel      string `yaml:"logLevel"`
	Workers       int    `yaml:"workers"`
}

// Load reads the YAML file at path and fills in defaults. A missing file is
// not an error; the defaults alone make a working local setup.
func Load(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if config.DataPath == "" {
		config.DataPath = "./data"
	}
	if config.MinimumFreeGB == 0 {
		config.MinimumFreeGB = 1
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Workers == 0 {
		config.Workers = 4
	}

	return config, nil
}
