package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ProviderConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaymentConfig struct {
	Stripe   ProviderConfig `yaml:"stripe"`
	PayPal   ProviderConfig `yaml:"paypal"`
	Cashfree ProviderConfig `yaml:"cashfree"`
}

type EnhancerConfig struct {
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	OpenAIKey    string `yaml:"openai_key"`
	DefaultModel string `yaml:"default_model"`
	MaxOutTokens int    `yaml:"max_out_tokens"`
}

type NotifyConfig struct {
	ResendKey string `yaml:"resend_key"`
	From      string `yaml:"from"`
}

type SchedulerConfig struct {
	SweepCron string `yaml:"sweep_cron"` // cron spec for the maintenance sweep
	BatchSize int    `yaml:"batch_size"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Enhancer  EnhancerConfig  `yaml:"enhancer"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, with a best-effort .env overlay so
// secrets can live in the environment. ${VAR} references in the YAML are
// expanded before parsing.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	b = []byte(os.ExpandEnv(string(b)))

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Scheduler.SweepCron == "" {
		cfg.Scheduler.SweepCron = "0 * * * *" // hourly
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 500
	}
	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 30
	}
	if cfg.Enhancer.DefaultModel == "" {
		cfg.Enhancer.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.Enhancer.MaxOutTokens <= 0 {
		cfg.Enhancer.MaxOutTokens = 1024
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.HMACSecret == "" {
		return nil, errors.New("auth.hmac_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
