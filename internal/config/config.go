package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Provider  ProviderConfig  `json:"provider"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Retry     RetryConfig     `json:"retry"`
	Stream    StreamConfig    `json:"stream"`
	Breaker   BreakerConfig   `json:"breaker"`
	Redis     RedisConfig     `json:"redis"`
	Database  DatabaseConfig  `json:"database"`
	Auth      AuthConfig      `json:"auth"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"` // "development" or "production"
}

type ProviderConfig struct {
	Endpoints   []string `json:"endpoints"` // OpenAI-compatible base URLs
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	TimeoutSecs int      `json:"timeout_seconds"`
}

type RateLimitConfig struct {
	Store         string `json:"store"` // "memory" or "redis"
	PerMinute     int    `json:"per_minute"`
	PerHour       int    `json:"per_hour"`
	PerDay        int    `json:"per_day"`
	MaxIdentities int    `json:"max_identities"` // bound on tracked sessions (memory store)
}

// Retry settings for one-shot provider calls. Multiplier 1 keeps the
// delay constant between attempts.
type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
}

// Retry settings for streaming calls, exponential by default.
type StreamConfig struct {
	MaxAttempts    int     `json:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
}

type BreakerConfig struct {
	MaxFailures int `json:"max_failures"`
	TimeoutSecs int `json:"timeout_seconds"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"` // empty disables usage logging
}

type AuthConfig struct {
	JWTSecret         string `json:"jwt_secret"`
	ExpiryHours       int    `json:"expiry_hours"`
	AdminUser         string `json:"admin_user"`
	AdminPasswordHash string `json:"admin_password_hash"` // bcrypt
}

func Load(path string) (*Config, error) {
	config := defaults()

	file, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(config)

	if len(config.Provider.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one provider endpoint is required")
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
		},
		Provider: ProviderConfig{
			Endpoints:   []string{"https://api.openai.com"},
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
			TimeoutSecs: 120,
		},
		RateLimit: RateLimitConfig{
			Store:         "memory",
			PerMinute:     15,
			PerHour:       250,
			PerDay:        500,
			MaxIdentities: 10000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			Multiplier:     1,
		},
		Stream: StreamConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			Multiplier:     2,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			TimeoutSecs: 30,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Auth: AuthConfig{
			ExpiryHours: 24,
		},
	}
}

// Environment variables win over the config file so secrets stay out of it
func applyEnv(config *Config) {
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		config.Server.Environment = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		config.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_MODEL"); v != "" {
		config.Provider.Model = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		config.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		config.Redis.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			config.Redis.DB = db
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_USER"); v != "" {
		config.Auth.AdminUser = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		config.Auth.AdminPasswordHash = v
	}
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}
