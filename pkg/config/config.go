package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration
type Config struct {
	Environment string
	Port        string

	// Store configuration. PostgresDSN wins over Supabase; with neither
	// set the server runs on the in-memory store.
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string

	JWTSecret string

	// BaseURL is used to build invitation share links
	BaseURL string

	AllowedOrigins []string

	Debug bool
}

// Load reads the environment-specific .env file and assembles the Config
func Load() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		_ = godotenv.Load(".env.production")
	default:
		_ = godotenv.Load(".env.local")
	}
	_ = godotenv.Load() // .env as the shared fallback

	config := &Config{
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		Port:        getEnvWithDefault("PORT", "3000"),
		JWTSecret:   getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		Debug:       getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SupabaseURL = strings.TrimSpace(os.Getenv("SUPABASE_URL"))
	config.SupabaseKey = strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY"))
	config.BaseURL = strings.TrimSpace(getEnvWithDefault("BASE_URL", "http://localhost:3000"))

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	if config.Environment == "production" {
		if config.PostgresDSN == "" && (config.SupabaseURL == "" || config.SupabaseKey == "") {
			fmt.Println("[warn] production environment without POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY, data will not be persisted")
		}
		config.Debug = false
	}

	return config
}

var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config, loading it once.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = Load()
	})
	return cachedConfig
}

// Validate checks the configuration for hard requirements
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		fmt.Println("[warn] using default JWT secret (not recommended for production)")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
