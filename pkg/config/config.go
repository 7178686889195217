package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the service settings read from the environment
type Config struct {
	Port          string        `mapstructure:"port"`
	GinMode       string        `mapstructure:"gin_mode"`
	Store         string        `mapstructure:"store"`
	DatabaseURL   string        `mapstructure:"database_url"`
	DataPath      string        `mapstructure:"data_path"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	DefaultPin    string        `mapstructure:"default_pin"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
}

// Store backends
const (
	StoreSQL    = "sql"
	StoreMemory = "memory"
)

var envPaths = []string{".env", "../.env", "../../.env"}

// LoadDotEnv loads the first .env file found in the usual locations
func LoadDotEnv() {
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the configuration. Environment variables override defaults.
func Load() (*Config, error) {
	LoadDotEnv()

	v := viper.New()
	v.SetDefault("port", "8000")
	v.SetDefault("gin_mode", "")
	v.SetDefault("store", StoreSQL)
	v.SetDefault("database_url", "")
	v.SetDefault("data_path", "ionm_staff.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "12h")
	v.SetDefault("default_pin", "1234")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot run without
func (c *Config) Validate() error {
	if c.Store != StoreSQL && c.Store != StoreMemory {
		return fmt.Errorf("config: store must be %q or %q, got %q", StoreSQL, StoreMemory, c.Store)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive")
	}
	return nil
}
