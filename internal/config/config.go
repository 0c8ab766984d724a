package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv" // godotenv loads a local .env file in development
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Optional groups (rate limiting, caching, OTP) are
// loaded separately by their own Load* functions.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // debug | info | warn | error
	BaseURL  string // public URL of the web app, used in email links

	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	DBMigrate bool   // apply the embedded schema on startup

	RabbitURL string // AMQP broker URL; empty disables the email queue

	Auth AuthConfig
	Mail MailConfig
}

// AuthConfig describes the two token issuers the Auth Gateway trusts: the
// managed identity provider (RS256, keys from JWKS) and the service itself
// (HS256 session tokens minted after OTP login).
type AuthConfig struct {
	JWKSURL       string
	Issuer        string
	Audience      string
	SessionSecret string
	SessionIssuer string
	SessionTTLMin int
}

// MailConfig holds SMTP settings for the mail provider.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // ignore: .env is optional outside development
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		BaseURL:   envStr("APP_BASE_URL", "http://localhost:3000"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		DBMigrate: envBool("DB_MIGRATE", true),
		RabbitURL: envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		Auth: AuthConfig{
			JWKSURL:       must("AUTH_JWKS_URL"),
			Issuer:        must("AUTH_ISSUER"),
			Audience:      must("AUTH_AUDIENCE"),
			SessionSecret: must("SESSION_SECRET"),
			SessionIssuer: envStr("SESSION_ISSUER", "trip-marketplace"),
			SessionTTLMin: mustIntDefault("SESSION_TTL_MIN", 60*24),
		},
		Mail: MailConfig{
			SMTPHost:     envStr("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     envStr("SMTP_PORT", "587"),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			FromEmail:    os.Getenv("MAIL_FROM"),
			FromName:     envStr("MAIL_FROM_NAME", "Trip Marketplace"),
		},
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustIntDefault returns def when key is unset and exits when it is set to
// something that is not an integer.
func mustIntDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
