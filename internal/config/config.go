package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cron        CronConfig        `mapstructure:"cron"`
	TradeLocker TradeLockerConfig `mapstructure:"tradelocker"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Lease       LeaseConfig       `mapstructure:"lease"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
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

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BrokerSync string `mapstructure:"broker_sync"`
}

type TradeLockerConfig struct {
	DemoBaseURL     string        `mapstructure:"demo_base_url"`
	LiveBaseURL     string        `mapstructure:"live_base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
	Burst           int           `mapstructure:"burst"`
	DeveloperAPIKey string        `mapstructure:"developer_api_key"`
}

type SyncConfig struct {
	DefaultLimit  int           `mapstructure:"default_limit"`
	MaxLimit      int           `mapstructure:"max_limit"`
	BatchSize     int           `mapstructure:"batch_size"`
	UpgradeTokens bool          `mapstructure:"upgrade_tokens"`
	IdleInterval  time.Duration `mapstructure:"idle_interval"`
}

type LeaseConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type SecretsConfig struct {
	KeyEnv string `mapstructure:"key_env"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TL")
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
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.broker_sync", "@every 5m")
	v.SetDefault("tradelocker.demo_base_url", "https://demo.tradelocker.com/backend-api")
	v.SetDefault("tradelocker.live_base_url", "https://live.tradelocker.com/backend-api")
	v.SetDefault("tradelocker.timeout", "25s")
	v.SetDefault("tradelocker.requests_per_sec", 8)
	v.SetDefault("tradelocker.burst", 4)
	v.SetDefault("tradelocker.developer_api_key", "")
	v.SetDefault("sync.default_limit", 500)
	v.SetDefault("sync.max_limit", 2000)
	v.SetDefault("sync.batch_size", 200)
	v.SetDefault("sync.upgrade_tokens", true)
	v.SetDefault("sync.idle_interval", "30m")
	v.SetDefault("lease.enabled", true)
	v.SetDefault("lease.ttl", "4m")
	v.SetDefault("secrets.key_env", "TL_SECRETS_KEY")

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
