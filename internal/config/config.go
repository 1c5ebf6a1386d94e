package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/travelsafe/security-barometer/internal/alerts"
	"github.com/travelsafe/security-barometer/internal/ingest"
)

// Config is the full service configuration loaded from config.yaml
type Config struct {
	App         AppConfig                `mapstructure:"app"`
	Server      ServerConfig             `mapstructure:"server"`
	Database    DatabaseConfig           `mapstructure:"database"`
	Journal     JournalConfig            `mapstructure:"journal"`
	NATS        NATSConfig               `mapstructure:"nats"`
	Confidence  alerts.ConfidenceConfig  `mapstructure:"confidence"`
	Integration ingest.IntegrationConfig `mapstructure:"integration"`
	Archive     ArchiveConfig            `mapstructure:"archive"`
	Feeds       []FeedConfig             `mapstructure:"feeds"`
	Auth        AuthConfig               `mapstructure:"auth"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type JournalConfig struct {
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type NATSConfig struct {
	URLs           []string      `mapstructure:"urls"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// FeedConfig describes one external alert feed to poll
type FeedConfig struct {
	Name     string        `mapstructure:"name"`
	URL      string        `mapstructure:"url"`
	APIKey   string        `mapstructure:"api_key"`
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

// AuthConfig maps static API tokens onto roles
type AuthConfig struct {
	Tokens map[string]string `mapstructure:"tokens"`
}

// Load reads and validates the configuration from the given directory
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	if cfg.Integration.SeverityMapping == nil {
		cfg.Integration.SeverityMapping = ingest.DefaultSeverityMapping()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "security-barometer")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("journal.path", "ingest_journal.db")
	v.SetDefault("journal.retention_days", 30)

	v.SetDefault("nats.urls", []string{"nats://localhost:4222"})
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	defaults := alerts.DefaultConfidenceConfig()
	v.SetDefault("confidence.min_display_threshold", defaults.MinDisplayThreshold)
	v.SetDefault("confidence.high_confidence_threshold", defaults.HighConfidenceThreshold)
	v.SetDefault("confidence.medium_confidence_threshold", defaults.MediumConfidenceThreshold)
	v.SetDefault("confidence.low_confidence_threshold", defaults.LowConfidenceThreshold)
	v.SetDefault("confidence.auto_hide_below", defaults.AutoHideBelow)

	v.SetDefault("integration.auto_create_incidents", true)
	v.SetDefault("integration.default_province_id", ingest.DefaultProvinceCode)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.schedule", "0 3 * * *")
}
