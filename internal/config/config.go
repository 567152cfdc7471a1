// Package config provides configuration structures and loading logic for tracepayload.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the root configuration structure for tracepayload.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	AppInsights AppInsightsConfig `mapstructure:"appinsights"`
	Query       QueryConfig       `mapstructure:"query"`
	Assembly    AssemblyConfig    `mapstructure:"assembly"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Export      ExportConfig      `mapstructure:"export"`
	DB          DBConfig          `mapstructure:"db"`
	Slack       SlackConfig       `mapstructure:"slack"`
}

// AppConfig defines application-level settings such as host and port.
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// AppInsightsConfig defines connection settings for the Application Insights query API.
type AppInsightsConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	ApplicationID string `mapstructure:"application_id"`
	APIKeyEnv     string `mapstructure:"api_key_env"`
	APIKey        string `mapstructure:"-"`
	Timeout       string `mapstructure:"timeout"`
}

// QueryConfig defines the trace table layout the query builder targets.
type QueryConfig struct {
	Table             string `mapstructure:"table"`
	RoleColumn        string `mapstructure:"role_column"`
	ServiceRole       string `mapstructure:"service_role"`
	ServiceRoleSuffix string `mapstructure:"service_role_suffix"`
	IncludeDateFilter bool   `mapstructure:"include_date_filter"`
}

// AssemblyConfig selects the pairing and orphan policies of the payload assembler.
type AssemblyConfig struct {
	PairingOrder string `mapstructure:"pairing_order"`
	OrphanPolicy string `mapstructure:"orphan_policy"`
}

// AuthConfig defines the shared secret guarding the download API.
type AuthConfig struct {
	SecretKeyEnv string `mapstructure:"secret_key_env"`
	SecretKey    string `mapstructure:"-"`
	SecretHash   string `mapstructure:"secret_hash"`
}

// ExportConfig defines where exported payload files are written.
type ExportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
	Compress  bool   `mapstructure:"compress"`
}

// DBConfig defines the export history database.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

// SlackConfig defines settings for the Slack incoming webhook integration.
type SlackConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	WebhookURLEnv string `mapstructure:"webhook_url_env"`
	WebhookURL    string `mapstructure:"-"`
}

// GetTimeoutDuration parses the configured string timeout into a time.Duration.
func (c *AppInsightsConfig) GetTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// Load loads configuration from .env, config.yaml and environment variables
func Load() (*Config, error) {
	// A missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tracepayload")

	return load(v, false)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	return load(v, true)
}

func load(v *viper.Viper, requireFile bool) (*Config, error) {
	// Allow environment variables to override config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || requireFile {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment variables named in the config
	if cfg.AppInsights.APIKeyEnv != "" {
		cfg.AppInsights.APIKey = os.Getenv(cfg.AppInsights.APIKeyEnv)
	}
	if cfg.Auth.SecretKeyEnv != "" {
		cfg.Auth.SecretKey = os.Getenv(cfg.Auth.SecretKeyEnv)
	}
	if cfg.Slack.WebhookURLEnv != "" {
		cfg.Slack.WebhookURL = os.Getenv(cfg.Slack.WebhookURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("appinsights.base_url", "https://api.applicationinsights.io")
	v.SetDefault("appinsights.application_id", "")
	v.SetDefault("appinsights.api_key_env", "APP_INSIGHTS_API_KEY")
	v.SetDefault("appinsights.timeout", "30s")
	v.SetDefault("query.table", "traces")
	v.SetDefault("query.role_column", "cloud_RoleName")
	v.SetDefault("query.service_role", "brierley_service")
	v.SetDefault("query.service_role_suffix", "brierley-transaction-azfunctionapp")
	v.SetDefault("query.include_date_filter", true)
	v.SetDefault("assembly.pairing_order", "arrival")
	v.SetDefault("assembly.orphan_policy", "skip")
	v.SetDefault("auth.secret_key_env", "SECRET_KEY")
	v.SetDefault("auth.secret_hash", "")
	v.SetDefault("export.enabled", false)
	v.SetDefault("export.output_dir", "./exports")
	v.SetDefault("export.compress", false)
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "./data/tracepayload.db")
	v.SetDefault("slack.enabled", false)
	v.SetDefault("slack.webhook_url_env", "SLACK_WEBHOOK_URL")
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Assembly.PairingOrder) {
	case "", "arrival", "timestamp":
	default:
		return fmt.Errorf("invalid assembly.pairing_order: %q", c.Assembly.PairingOrder)
	}
	switch strings.ToLower(c.Assembly.OrphanPolicy) {
	case "", "skip", "fail":
	default:
		return fmt.Errorf("invalid assembly.orphan_policy: %q", c.Assembly.OrphanPolicy)
	}
	if c.DB.Enabled {
		switch c.DB.Driver {
		case "sqlite3", "postgres":
		default:
			return fmt.Errorf("unsupported db.driver: %q", c.DB.Driver)
		}
	}
	return nil
}
