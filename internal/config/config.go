package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Environment   string `json:"environment"`
	Port          int    `json:"port"`
	Host          string `json:"host"`
	PublicBaseURL string `json:"public_base_url"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBPath     string `json:"db_path"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBSSLMode  string `json:"db_sslmode"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret          string   `json:"jwt_secret"`
	TokenTTLHours      int      `json:"token_ttl_hours"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`

	// Rate limiting; disabled when RedisURL is empty
	RedisURL           string `json:"redis_url"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`

	// Media storage
	StorageBackend string `json:"storage_backend"`
	MediaRoot      string `json:"media_root"`
	MediaURL       string `json:"media_url"`
	S3Bucket       string `json:"s3_bucket"`
	S3Endpoint     string `json:"s3_endpoint"`
	AWSRegion      string `json:"aws_region"`

	// Shopping list export and catalog import
	PDFFontPath     string `json:"pdf_font_path"`
	IngredientsPath string `json:"ingredients_path"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Environment: %s, Port: %d, Host: %s, DBDriver: %s, DBPath: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], LogLevel: %s, JWTSecret: [REDACTED], RedisURL: %s, StorageBackend: %s, S3Bucket: %s}",
		c.Environment, c.Port, c.Host, c.DBDriver, c.DBPath, c.DBHost, c.DBName, c.DBUser, c.LogLevel, maskURL(c.RedisURL), c.StorageBackend, c.S3Bucket)
}

// maskURL masks the password of a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}

	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
		}
	}

	return parsed.String()
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// Returns an error if any environment variable is present but invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config := &Config{
		Environment:        GetEnvWithDefault("APP_ENV", "development"),
		Port:               port,
		Host:               GetEnvWithDefault("APP_HOST", "localhost"),
		PublicBaseURL:      strings.TrimRight(GetEnvWithDefault("PUBLIC_BASE_URL", ""), "/"),
		DBDriver:           strings.ToLower(GetEnvWithDefault("DB_DRIVER", "sqlite")),
		DBPath:             GetEnvWithDefault("DB_PATH", "foodgram.sqlite"),
		DBHost:             GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:             GetEnvWithDefault("DB_PORT", "5432"),
		DBName:             GetEnvWithDefault("DB_NAME", "foodgram"),
		DBUser:             GetEnvWithDefault("DB_USER", "foodgram"),
		DBPassword:         GetEnvWithDefault("DB_PASSWORD", "foodgram"),
		DBSSLMode:          GetEnvWithDefault("DB_SSLMODE", "disable"),
		LogLevel:           GetEnvWithDefault("LOG_LEVEL", "info"),
		JWTSecret:          GetEnvWithDefault("JWT_SECRET", "secret"),
		TokenTTLHours:      GetEnvAsType("TOKEN_TTL_HOURS", 24),
		CORSAllowedOrigins: splitList(GetEnvWithDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RedisURL:           GetEnvWithDefault("REDIS_URL", ""),
		RateLimitPerMinute: GetEnvAsType("RATE_LIMIT_PER_MINUTE", 60),
		StorageBackend:     strings.ToLower(GetEnvWithDefault("STORAGE_BACKEND", "local")),
		MediaRoot:          GetEnvWithDefault("MEDIA_ROOT", "media"),
		MediaURL:           strings.TrimRight(GetEnvWithDefault("MEDIA_URL", "/media"), "/"),
		S3Bucket:           GetEnvWithDefault("S3_BUCKET", ""),
		S3Endpoint:         GetEnvWithDefault("S3_ENDPOINT", ""),
		AWSRegion:          GetEnvWithDefault("AWS_REGION", "us-east-1"),
		PDFFontPath:        GetEnvWithDefault("PDF_FONT_PATH", ""),
		IngredientsPath:    GetEnvWithDefault("INGREDIENTS_PATH", "data/ingredients.json"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Validate checks the combinations of settings that cannot work together
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (supported: sqlite, postgres)", c.DBDriver)
	}

	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET environment variable is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (supported: local, s3)", c.StorageBackend)
	}

	if c.Environment == "production" && c.JWTSecret == "secret" {
		return errors.New("JWT_SECRET must be set in production")
	}

	if c.RedisURL != "" {
		if _, err := url.ParseRequestURI(c.RedisURL); err != nil {
			return fmt.Errorf("invalid REDIS_URL format: %w", err)
		}
	}

	if c.TokenTTLHours <= 0 {
		return errors.New("TOKEN_TTL_HOURS must be positive")
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%v:%d", c.Host, c.Port)
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			log.Warnf("Environment variable %s is not an integer, using default value", key)
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Warnf("Environment variable %s is not a boolean, using default value", key)
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
