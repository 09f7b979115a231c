package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Notifier  NotifierConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the optional Redis connection used by the rate limiter.
// When Addr is empty the limiter falls back to its in-memory implementation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret      string
	TokenExpiry time.Duration
	Issuer      string
}

// SecurityConfig holds the account security policy knobs.
// Defaults match the documented policy: 5 failed attempts lock the account
// for 15 minutes, login OTPs live 10 minutes, reset OTPs 6 minutes, and
// passwords expire after 90 days.
type SecurityConfig struct {
	MaxFailedAttempts  int
	LockoutDuration    time.Duration
	LoginOTPTTL        time.Duration
	ResetOTPTTL        time.Duration
	PasswordExpiryDays int
	PasswordHistory    int
	BcryptCost         int
}

// RateLimitConfig holds the rate limiter windows.
// Auth covers the login-adjacent endpoints, General everything else.
type RateLimitConfig struct {
	AuthLimit     int
	AuthWindow    time.Duration
	GeneralLimit  int
	GeneralWindow time.Duration
}

// NotifierConfig holds OTP delivery settings for email and SMS channels
type NotifierConfig struct {
	SMTPHost   string
	SMTPPort   string
	SMTPUser   string
	SMTPPass   string
	From       string
	SMSGateway string
	SMSAPIKey  string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "kinmel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			TokenExpiry: getDurationEnv("JWT_TOKEN_EXPIRY_MINUTES", 60*time.Minute),
			Issuer:      getEnv("JWT_ISSUER", "kinmel-backend"),
		},
		Security: SecurityConfig{
			MaxFailedAttempts:  getIntEnv("AUTH_MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:    getDurationEnv("AUTH_LOCKOUT_MINUTES", 15*time.Minute),
			LoginOTPTTL:        getDurationEnv("AUTH_LOGIN_OTP_TTL_MINUTES", 10*time.Minute),
			ResetOTPTTL:        getDurationEnv("AUTH_RESET_OTP_TTL_MINUTES", 6*time.Minute),
			PasswordExpiryDays: getIntEnv("AUTH_PASSWORD_EXPIRY_DAYS", 90),
			PasswordHistory:    getIntEnv("AUTH_PASSWORD_HISTORY", 5),
			BcryptCost:         getIntEnv("AUTH_BCRYPT_COST", 12),
		},
		RateLimit: RateLimitConfig{
			AuthLimit:     getIntEnv("RATE_LIMIT_AUTH", 5),
			AuthWindow:    getDurationEnv("RATE_LIMIT_AUTH_WINDOW_MINUTES", 15*time.Minute),
			GeneralLimit:  getIntEnv("RATE_LIMIT_GENERAL", 100),
			GeneralWindow: getDurationEnv("RATE_LIMIT_GENERAL_WINDOW_MINUTES", 1*time.Minute),
		},
		Notifier: NotifierConfig{
			SMTPHost:   getEnv("SMTP_HOST", "localhost"),
			SMTPPort:   getEnv("SMTP_PORT", "587"),
			SMTPUser:   getEnv("SMTP_USER", ""),
			SMTPPass:   getEnv("SMTP_PASS", ""),
			From:       getEnv("SMTP_FROM", "no-reply@kinmel.local"),
			SMSGateway: getEnv("SMS_GATEWAY_URL", ""),
			SMSAPIKey:  getEnv("SMS_API_KEY", ""),
		},
	}
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns an integer from environment variable or default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv returns duration in minutes from environment variable or default
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}
