package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Paste     PasteConfig
	DB        DBConfig
	Redis     RedisConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port         string
	BaseURL      string
	MaxBodyBytes int64
	TestMode     bool
}

type PasteConfig struct {
	// StrictViews включает оптимистичные транзакции при расходовании просмотров
	StrictViews bool
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Timeout  time.Duration
}

type AuditConfig struct {
	Enabled   bool
	Retention time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile читает конфиг из env-файла path (если он есть) и переменных окружения
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_MAX_BODY_BYTES", 1<<20)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_TIMEOUT", 3*time.Second)
	v.SetDefault("AUDIT_RETENTION_DAYS", 30)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	// .env необязателен: в контейнере всё приходит через окружение
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = v.GetString("APP_BASE_URL")
	cfg.App.MaxBodyBytes = v.GetInt64("APP_MAX_BODY_BYTES")
	cfg.App.TestMode = v.GetBool("TEST_MODE")

	cfg.Paste.StrictViews = v.GetBool("PASTE_STRICT_VIEWS")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.Timeout = v.GetDuration("REDIS_TIMEOUT")

	cfg.Audit.Enabled = v.GetBool("AUDIT_ENABLED")
	cfg.Audit.Retention = time.Duration(v.GetInt("AUDIT_RETENTION_DAYS")) * 24 * time.Hour

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	if cfg.Audit.Enabled && cfg.DB.Host == "" {
		return nil, errors.New("AUDIT_ENABLED requires DB_HOST")
	}

	return &cfg, nil
}
