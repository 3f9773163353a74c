// Package config loads service configuration from an optional YAML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSecret is returned by Require when a needed credential is empty.
var ErrMissingSecret = errors.New("missing required secret")

type Config struct {
	App struct {
		Port            string        `mapstructure:"port"`
		Environment     string        `mapstructure:"environment"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	} `mapstructure:"app"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Database struct {
		URL         string `mapstructure:"url"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`

	RateLimit struct {
		Backend   string `mapstructure:"backend"`
		RedisAddr string `mapstructure:"redis_addr"`
	} `mapstructure:"rate_limit"`

	Apify struct {
		Token   string `mapstructure:"token"`
		ActorID string `mapstructure:"actor_id"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"apify"`

	RapidAPI struct {
		Key  string `mapstructure:"key"`
		Host string `mapstructure:"host"`
	} `mapstructure:"rapidapi"`

	LLM struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"llm"`

	GitHub struct {
		Token   string `mapstructure:"token"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"github"`

	Trends struct {
		Geo string `mapstructure:"geo"`
	} `mapstructure:"trends"`
}

var envBindings = map[string]string{
	"app.port":              "PORT",
	"app.environment":       "APP_ENV",
	"app.refresh_interval":  "REFRESH_INTERVAL",
	"logging.level":         "LOG_LEVEL",
	"database.url":          "DATABASE_URL",
	"database.auto_migrate": "AUTO_MIGRATE",
	"auth.jwt_secret":       "JWT_SECRET",
	"rate_limit.backend":    "RATE_LIMIT_BACKEND",
	"rate_limit.redis_addr": "REDIS_ADDR",
	"apify.token":           "APIFY_TOKEN",
	"apify.actor_id":        "APIFY_ACTOR_ID",
	"apify.base_url":        "APIFY_BASE_URL",
	"rapidapi.key":          "RAPIDAPI_KEY",
	"rapidapi.host":         "RAPIDAPI_HOST",
	"llm.api_key":           "LLM_API_KEY",
	"llm.base_url":          "LLM_BASE_URL",
	"llm.model":             "LLM_MODEL",
	"github.token":          "GITHUB_TOKEN",
	"github.base_url":       "GITHUB_BASE_URL",
	"trends.geo":            "GOOGLE_TRENDS_GEO",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.refresh_interval", "0s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.url", "host=localhost user=postgres password=postgres dbname=problem_radar port=5432 sslmode=disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("rate_limit.backend", "postgres")
	v.SetDefault("rate_limit.redis_addr", "localhost:6379")
	v.SetDefault("apify.actor_id", "clockworks~tiktok-scraper")
	v.SetDefault("apify.base_url", "https://api.apify.com")
	v.SetDefault("rapidapi.host", "reddit34.p.rapidapi.com")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("trends.geo", "US")
}

// Load reads the YAML file at path (skipped when empty or missing), a .env
// file in the working directory, and the environment. Environment values win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.RateLimit.Backend {
	case "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", cfg.RateLimit.Backend)
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.App.Environment)
	return env == "production" || env == "prod"
}

// Require returns ErrMissingSecret naming the first empty value.
func Require(secrets map[string]string) error {
	names := make([]string, 0, len(secrets))
	for name := range secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(secrets[name]) == "" {
			return fmt.Errorf("%w: %s is not configured", ErrMissingSecret, name)
		}
	}
	return nil
}
