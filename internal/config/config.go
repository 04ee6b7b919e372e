package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	// DynamoMaxAttempts caps SDK attempts per call, retries included.
	DynamoMaxAttempts int

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	ResetTokenExpiry  time.Duration

	SMTP  SMTPConfig
	OTP   OTPConfig
	Redis RedisConfig

	BcryptCost     int
	AllowedOrigins []string // CORS allowed origins
	// TrustedProxies lists proxy CIDRs or addresses whose forwarding headers
	// are believed. Empty means every client is keyed by its socket address.
	TrustedProxies []string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users        string
	UserUniques  string
	ChatSessions string
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
	Timeout  time.Duration
}

// OTPConfig controls one-time code lifetime and where pending codes live.
type OTPConfig struct {
	Expiry        time.Duration
	Store         string // "memory" | "redis"
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	OTPStoreMemory = "memory"
	OTPStoreRedis  = "redis"
)

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:        getEnv("DYNAMO_TABLE_USERS", "users"),
			UserUniques:  getEnv("DYNAMO_TABLE_USER_UNIQUES", "user_uniques"),
			ChatSessions: getEnv("DYNAMO_TABLE_CHAT_SESSIONS", "chat_sessions"),
		},
		DynamoMaxAttempts: getEnvInt("DYNAMO_MAX_ATTEMPTS", 3),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		ResetTokenExpiry:  getEnvDuration("RESET_TOKEN_EXPIRY", 5*time.Minute),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "1025"),
			From:     getEnv("SMTP_FROM", "noreply@cropintel.local"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Timeout:  getEnvDuration("SMTP_TIMEOUT", 10*time.Second),
		},
		OTP: OTPConfig{
			Expiry:        getEnvDuration("OTP_EXPIRY", 300*time.Second),
			Store:         strings.ToLower(getEnv("OTP_STORE", OTPStoreMemory)),
			SweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		BcryptCost:     getEnvInt("BCRYPT_COST", 10),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// IsDevelopment reports whether the process runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, e := range strings.Split(os.Getenv(key), ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration falls back on unparsable and non-positive values.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
