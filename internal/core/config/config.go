package config

import (
	"time"

	redisclient "github.com/opsdeck/opsdeck/internal/infra/redisx"
	"github.com/opsdeck/opsdeck/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Monitor    MonitorConfig      `yaml:"monitor"`
	Services   []ServiceConfig    `yaml:"services"`
	ClickHouse ClickHouseConfig   `yaml:"clickhouse"`
	Broker     BrokerConfig       `yaml:"broker"`
	Chain      ChainConfig        `yaml:"chain"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Backup     BackupConfig       `yaml:"backup"`
	Push       PushConfig         `yaml:"push"`
	SSL        SSLConfig          `yaml:"ssl"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MonitorConfig holds health check orchestrator settings.
type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"`      // cycle cadence
	ProbeTimeout time.Duration `yaml:"probe_timeout"` // uniform per-probe ceiling
	PushInterval time.Duration `yaml:"push_interval"` // per-client stream cadence
}

// ServiceConfig describes one HTTP microservice health endpoint to probe.
type ServiceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ClickHouseConfig holds the columnar store ping endpoint.
type ClickHouseConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"` // HTTP interface, e.g. http://clickhouse:8123
}

// BrokerConfig holds message broker reachability settings.
type BrokerConfig struct {
	Name    string   `yaml:"name"`
	Brokers []string `yaml:"brokers"`
}

// ChainConfig holds the blockchain JSON-RPC node endpoint.
type ChainConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// BackupConfig holds backup lifecycle settings.
type BackupConfig struct {
	Schedule       string        `yaml:"schedule"`  // cron expression
	Dir            string        `yaml:"dir"`       // artifact directory
	Retention      time.Duration `yaml:"retention"` // artifact retention window
	DumpTimeout    time.Duration `yaml:"dump_timeout"`
	RestoreTimeout time.Duration `yaml:"restore_timeout"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	DBName         string        `yaml:"db_name"`
}

// PushConfig holds web push (VAPID) delivery credentials. Empty keys put the
// dispatcher into no-op mode.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"` // mailto: or https: contact
}

// SSLConfig holds certificate expiry watcher settings.
type SSLConfig struct {
	Hosts    []string      `yaml:"hosts"` // host or host:port, 443 assumed
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
