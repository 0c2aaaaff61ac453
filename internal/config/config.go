package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For splitting the admin email list
	"time"    // For the rate limit window duration

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort          string        // Application port
	DBUser           string        // Database user
	DBPassword       string        // Database password
	DBHost           string        // Database host
	DBPort           string        // Database port
	DBName           string        // Database name
	JWTSecret        string        // Secret used to sign and verify admin tokens
	RedisAddr        string        // Redis server address
	RedisPass        string        // Redis password
	RedisDB          int           // Redis database number
	AdminUsername    string        // Configured admin username
	AdminPassword    string        // Admin password (bcrypt hash, or legacy plain text)
	AdminEmails      []string      // Admin email allow-list, lowercased
	VerifySignatures bool          // Wallet signature check enable flag
	RateLimitWindow  time.Duration // Fixed window for write-endpoint rate limiting
	RateLimitMax     int           // Request ceiling per window per client key
	IsProd           bool          // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	// Rate limit knobs default to 15 minutes / 100 requests
	windowMinutes := 15
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_WINDOW_MINUTES")); err == nil && v > 0 {
		windowMinutes = v
	}
	limitMax := 100
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_MAX")); err == nil && v > 0 {
		limitMax = v
	}

	// Parse the comma-separated admin email allow-list, lowercased for
	// case-insensitive matching
	var emails []string
	for _, e := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails = append(emails, e)
		}
	}

	return &Config{
		AppPort:          os.Getenv("APP_PORT"),                       // Application port
		DBUser:           os.Getenv("DB_USER"),                        // Database user
		DBPassword:       os.Getenv("DB_PASSWORD"),                    // Database password
		DBHost:           os.Getenv("DB_HOST"),                        // Database host
		DBPort:           os.Getenv("DB_PORT"),                        // Database port
		DBName:           os.Getenv("DB_NAME"),                        // Database name
		JWTSecret:        os.Getenv("JWT_SECRET"),                     // Admin token secret
		RedisAddr:        os.Getenv("REDIS_ADDR"),                     // Redis server address
		RedisPass:        os.Getenv("REDIS_PASS"),                     // Redis password
		RedisDB:          redisDB,                                     // Redis database number
		AdminUsername:    os.Getenv("ADMIN_USERNAME"),                 // Admin username
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),                 // Admin password
		AdminEmails:      emails,                                      // Admin email allow-list
		VerifySignatures: os.Getenv("VERIFY_SIGNATURES") != "false",   // Signature check on unless disabled
		RateLimitWindow:  time.Duration(windowMinutes) * time.Minute,  // Rate limit window
		RateLimitMax:     limitMax,                                    // Rate limit ceiling
		IsProd:           os.Getenv("IS_PROD") == "true",              // Is production environment
	}
}

// IsAdminIdentity reports whether the given identity (username or email) is an
// authorized admin. Emails are matched case-insensitively against the allow-list.
func (c *Config) IsAdminIdentity(identity string) bool {
	if identity == "" {
		return false
	}
	if c.AdminUsername != "" && identity == c.AdminUsername {
		return true
	}
	lowered := strings.ToLower(identity)
	for _, e := range c.AdminEmails {
		if e == lowered {
			return true
		}
	}
	return false
}
