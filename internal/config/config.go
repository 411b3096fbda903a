package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkgauth "github.com/aka0kuro/hostberry-sub000/pkg/auth"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Access    AccessConfig
	Headers   HeadersConfig
	Audit     AuditConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	// TokenSecret may be empty: an ephemeral secret is then generated at
	// startup and tokens do not survive a restart.
	TokenSecret        string
	TokenTTL           time.Duration
	BcryptCost         int
	MaxLoginAttempts   int
	LoginBlockDuration time.Duration
	AdminUsername      string
	AdminPassword      string
}

type RateLimitConfig struct {
	Enabled         bool
	MaxRequests     int
	Window          time.Duration
	CleanupInterval time.Duration
}

type AccessConfig struct {
	Blacklist        []string
	Whitelist        []string
	WhitelistEnabled bool
}

type HeadersConfig struct {
	EnableHSTS bool
	EnableCSP  bool
}

type AuditConfig struct {
	LogPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Auth: AuthConfig{
			TokenSecret:        getEnv("TOKEN_SECRET", ""),
			TokenTTL:           getEnvAsDuration("TOKEN_TTL", 1*time.Hour),
			BcryptCost:         getEnvAsInt("BCRYPT_COST", pkgauth.DefaultBcryptCost),
			MaxLoginAttempts:   getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LoginBlockDuration: getEnvAsDuration("LOGIN_BLOCK_DURATION", 15*time.Minute),
			AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", true),
			MaxRequests:     getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
			Window:          getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Access: AccessConfig{
			Blacklist:        getEnvAsList("IP_BLACKLIST", nil),
			Whitelist:        getEnvAsList("IP_WHITELIST", nil),
			WhitelistEnabled: getEnvAsBool("IP_WHITELIST_ENABLED", false),
		},
		Headers: HeadersConfig{
			EnableHSTS: getEnvAsBool("ENABLE_HSTS", false),
			EnableCSP:  getEnvAsBool("ENABLE_CSP", true),
		},
		Audit: AuditConfig{
			LogPath: getEnv("AUDIT_LOG_PATH", "hostberry-audit.log"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.Auth.LoginBlockDuration <= 0 {
		return fmt.Errorf("LOGIN_BLOCK_DURATION must be positive")
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be at least 1")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Auth.TokenSecret != "" {
		if err := validateTokenSecret(c.Auth.TokenSecret, c.Server.Env); err != nil {
			return err
		}
	}
	return nil
}

// validateTokenSecret enforces minimum strength for a configured secret
func validateTokenSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("TOKEN_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}
