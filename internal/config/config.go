package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server      Server         `mapstructure:"server"`
	Database    Database       `mapstructure:"database"`
	Redis       Redis          `mapstructure:"redis"`
	Email       Email          `mapstructure:"email"`
	Telegram    Telegram       `mapstructure:"telegram"`
	Marketplace Marketplace    `mapstructure:"marketplace"`
	Scheduler   Scheduler      `mapstructure:"scheduler"`
	Lock        Lock           `mapstructure:"lock"`
	Retry       retry.Strategy `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP port to listen on
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Redis holds Redis connection parameters. Redis backs the cross-process
// scan lock.
type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// Email holds SMTP configuration for sending emails.
type Email struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Telegram holds configuration for sending Telegram messages.
type Telegram struct {
	Token string `mapstructure:"token"`
}

// Marketplace holds configuration for the search gateway, the sidecar that
// runs marketplace queries and returns normalized listings.
type Marketplace struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// Scheduler holds timing parameters for the scan and price-watch cycles.
type Scheduler struct {
	ScanInterval   time.Duration `mapstructure:"scan_interval"`    // how often the scheduler fires
	AlertInterval  time.Duration `mapstructure:"alert_interval"`   // minimum time between runs of one alert
	NotifyCap      int           `mapstructure:"notify_cap"`       // max notifications per alert per cycle
	NotifyPause    time.Duration `mapstructure:"notify_pause"`     // pause between successive sends
	WatchStaleness time.Duration `mapstructure:"watch_staleness"`  // re-check watched items older than this
}

// Lock holds parameters for the cross-process scan lock.
type Lock struct {
	Key     string        `mapstructure:"key"`
	TTL     time.Duration `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout"` // how long an invocation waits before failing
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv() {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",

		"redis.address":  "REDIS_ADDRESS",
		"redis.password": "REDIS_PASSWORD",
		"redis.database": "REDIS_DATABASE",

		"email.smtp_host": "SMTP_HOST",
		"email.smtp_port": "SMTP_PORT",
		"email.username":  "SMTP_USER",
		"email.password":  "SMTP_PASS",
		"email.from":      "SMTP_FROM",

		"telegram.token": "TELEGRAM_BOT_TOKEN",

		"marketplace.base_url": "MARKETPLACE_GATEWAY_URL",
		"marketplace.api_key":  "MARKETPLACE_GATEWAY_KEY",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// setDefaults registers fallback values for the scheduler and lock so a
// minimal config file still produces a working agent.
func setDefaults() {
	viper.SetDefault("scheduler.scan_interval", time.Minute)
	viper.SetDefault("scheduler.alert_interval", 3*time.Minute)
	viper.SetDefault("scheduler.notify_cap", 5)
	viper.SetDefault("scheduler.notify_pause", 5*time.Second)
	viper.SetDefault("scheduler.watch_staleness", time.Hour)

	viper.SetDefault("lock.key", "market-alerts:scan-lock")
	viper.SetDefault("lock.ttl", 2*time.Minute)
	viper.SetDefault("lock.timeout", 110*time.Second)
}

// Must loads and validates the configuration from file and environment variables.
//
// It panics if configuration cannot be read or unmarshalled.
func Must() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to read config")
	}

	mustBindEnv()
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
