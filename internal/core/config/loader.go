package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 10 * time.Second
	}
	if cfg.Monitor.ProbeTimeout == 0 {
		cfg.Monitor.ProbeTimeout = 5 * time.Second
	}
	if cfg.Monitor.PushInterval == 0 {
		cfg.Monitor.PushInterval = cfg.Monitor.Interval
	}
	if cfg.Backup.Schedule == "" {
		cfg.Backup.Schedule = "0 2 * * *"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "backups"
	}
	if cfg.Backup.Retention == 0 {
		cfg.Backup.Retention = 30 * 24 * time.Hour
	}
	if cfg.Backup.DumpTimeout == 0 {
		cfg.Backup.DumpTimeout = 5 * time.Minute
	}
	if cfg.Backup.RestoreTimeout == 0 {
		cfg.Backup.RestoreTimeout = 10 * time.Minute
	}
	if cfg.Backup.Port == 0 {
		cfg.Backup.Port = 5432
	}
	if cfg.SSL.Interval == 0 {
		cfg.SSL.Interval = 12 * time.Hour
	}
}
