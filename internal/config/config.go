package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Provider ProviderConfig `mapstructure:"provider"`
	RoiJob   RoiJobConfig   `mapstructure:"roi_job"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RoiRecompute string `mapstructure:"roi_recompute"`
}

// ProviderConfig describes the external daily-close provider (CoinGecko).
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RoiJobConfig struct {
	// LockStaleAfter is the age past which a held job lock is considered
	// abandoned and may be stolen by a new run.
	LockStaleAfter time.Duration `mapstructure:"lock_stale_after"`
	// PriceLookbackDays is how many extra days of closes are pulled before
	// the recompute window so the first computed day has a previous close.
	PriceLookbackDays int    `mapstructure:"price_lookback_days"`
	CashSymbol        string `mapstructure:"cash_symbol"`
	Holder            string `mapstructure:"holder"`
}

type AuthConfig struct {
	// CronSecret authenticates scheduled/manual job triggers
	// (X-Cron-Secret header or bearer token).
	CronSecret string `mapstructure:"cron_secret"`
	// AdminToken authenticates allocation publishes from the back office.
	AdminToken string `mapstructure:"admin_token"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.roi_recompute", "@every 1h")
	v.SetDefault("provider.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("roi_job.lock_stale_after", "30m")
	v.SetDefault("roi_job.price_lookback_days", 2)
	v.SetDefault("roi_job.cash_symbol", "CASH")
	v.SetDefault("roi_job.holder", "roimonitor")
	v.SetDefault("auth.cron_secret", "")
	v.SetDefault("auth.admin_token", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
