package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSource is the published UCDP GED v24.1 event extract.
const DefaultSource = "https://raw.githubusercontent.com/jmanali1996/Civilian-Conflicts/main/GEDEvent_v24_1.csv"

// Config holds the full application configuration.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset" mapstructure:"dataset"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Query      QueryConfig      `yaml:"query" mapstructure:"query"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DatasetConfig configures where the event table is loaded from.
type DatasetConfig struct {
	// Source is a local path, an http(s):// or ftp:// URL, a sqlite:// path
	// or a postgres:// DSN.
	Source string `yaml:"source" mapstructure:"source"`
	// Format forces the reader (csv, xlsx, zip, sqlite, postgres). Empty
	// means detect from the source.
	Format      string `yaml:"format" mapstructure:"format"`
	Table       string `yaml:"table" mapstructure:"table"`
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	LabelsPath  string `yaml:"labels_path" mapstructure:"labels_path"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// QueryConfig configures default ranking and pagination sizes.
type QueryConfig struct {
	TopN     int `yaml:"top_n" mapstructure:"top_n"`
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// CacheConfig configures the dashboard result cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	MaxEntries int  `yaml:"max_entries" mapstructure:"max_entries"`
}

// MonitoringConfig configures the background health checker and its
// webhook alerts. Alerts are only sent when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	InvalidRateThreshold float64 `yaml:"invalid_rate_threshold" mapstructure:"invalid_rate_threshold"`
	MinCacheHitRate      float64 `yaml:"min_cache_hit_rate" mapstructure:"min_cache_hit_rate"`
	MinQueries           int     `yaml:"min_queries" mapstructure:"min_queries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONFLICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.source", DefaultSource)
	v.SetDefault("dataset.format", "")
	v.SetDefault("dataset.table", "ged_events")
	v.SetDefault("dataset.sheet", "")
	v.SetDefault("dataset.temp_dir", "/tmp/conflict-dash")
	v.SetDefault("dataset.labels_path", "")
	v.SetDefault("dataset.user_agent", "conflict-dash/1.0")
	v.SetDefault("dataset.timeout_secs", 60)
	v.SetDefault("dataset.max_retries", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 30)
	v.SetDefault("query.top_n", 10)
	v.SetDefault("query.page_size", 12)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.invalid_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_cache_hit_rate", 0.0)
	v.SetDefault("monitoring.min_queries", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode
// ("load" for anything that reads the dataset, "serve" for the API).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "load":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if strings.TrimSpace(c.Dataset.Source) == "" {
		errs = append(errs, "dataset.source is required")
	}
	switch c.Dataset.Format {
	case "", "csv", "xlsx", "zip", "sqlite", "postgres":
	default:
		errs = append(errs, "dataset.format must be one of csv, xlsx, zip, sqlite, postgres")
	}
	if c.Query.TopN < 1 {
		errs = append(errs, "query.top_n must be >= 1")
	}
	if c.Query.PageSize < 1 || c.Query.PageSize > 1000 {
		errs = append(errs, "query.page_size must be between 1 and 1000")
	}
	if c.Cache.Enabled && c.Cache.MaxEntries < 1 {
		errs = append(errs, "cache.max_entries must be >= 1 when cache is enabled")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
