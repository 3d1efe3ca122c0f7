// Package config loads the server's YAML configuration. Grounded on the
// teacher's config.Load: seed a defaults struct literal, then overlay it
// with yaml.Unmarshal so an empty or partial file still yields a usable
// configuration. A missing file is an error.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Transcripts TranscriptsConfig `yaml:"transcripts"`
}

// ServerConfig controls the TCP listener and protocol timeouts.
type ServerConfig struct {
	BindHost        string        `yaml:"bind_host"`
	BindPort        int           `yaml:"bind_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	RechargeTimeout time.Duration `yaml:"recharge_timeout"`
}

// TranscriptsConfig controls per-session wire-transcript logging.
type TranscriptsConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads and parses the YAML config file at path, returning defaults
// overlaid with whatever the file specifies.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			BindHost:        "localhost",
			BindPort:        3999,
			ReadTimeout:     1 * time.Second,
			RechargeTimeout: 5 * time.Second,
		},
		Transcripts: TranscriptsConfig{
			Path:          "/data/transcripts",
			RetentionDays: 7,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
