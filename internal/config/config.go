package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Retention RetentionConfig `mapstructure:"retention"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AlertingConfig tunes ingestion gating, evaluation concurrency and dispatch.
type AlertingConfig struct {
	MinSampleIntervalSeconds int    `mapstructure:"min_sample_interval_seconds"`
	MaxSamplesPerSeries      int    `mapstructure:"max_samples_per_series"`
	MaxHistoryPerRule        int    `mapstructure:"max_history_per_rule"`
	MaxConcurrentEvals       int    `mapstructure:"max_concurrent_evals"`
	DispatchTimeout          string `mapstructure:"dispatch_timeout"`
}

// RetentionConfig bounds the age of stored rows. Sweeps run on the cron
// schedule; zero days disables the corresponding sweep.
type RetentionConfig struct {
	SweepSchedule     string `mapstructure:"sweep_schedule"`
	MetricHistoryDays int    `mapstructure:"metric_history_days"`
	AlertHistoryDays  int    `mapstructure:"alert_history_days"`
	LedgerDays        int    `mapstructure:"ledger_days"`
}

type WebSocketConfig struct {
	PingInterval int `mapstructure:"ping_interval"`
	PongTimeout  int `mapstructure:"pong_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Load reads configuration from configs/config.yaml with env overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3300)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	viper.SetDefault("database.path", "./data/kpiwatch.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 25)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("alerting.min_sample_interval_seconds", 3600)
	viper.SetDefault("alerting.max_samples_per_series", 30)
	viper.SetDefault("alerting.max_history_per_rule", 50)
	viper.SetDefault("alerting.max_concurrent_evals", 10)
	viper.SetDefault("alerting.dispatch_timeout", "30s")

	viper.SetDefault("retention.sweep_schedule", "0 0 3 * * *")
	viper.SetDefault("retention.metric_history_days", 90)
	viper.SetDefault("retention.alert_history_days", 90)
	viper.SetDefault("retention.ledger_days", 90)

	viper.SetDefault("websocket.ping_interval", 30)
	viper.SetDefault("websocket.pong_timeout", 60)
	viper.SetDefault("websocket.write_timeout", 10)
}
