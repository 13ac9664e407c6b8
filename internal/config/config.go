package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "dev_jwt_secret_change_me"

// Config holds application configuration values.
type Config struct {
	Env     string
	AppPort string

	DatabaseURL string

	JWTSecret    string
	JWTExpiresIn time.Duration

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	DefaultCurrency   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	FrontendURL string

	LogLevel  string
	LogToFile bool
	LogFile   string

	RateLimitMax    int
	RateLimitWindow time.Duration
	RedisURL        string

	RabbitMQURL string

	FirebaseProjectID       string
	FirebaseCredentialsFile string
	FirebaseCredentialsJSON string

	AdminEmail    string
	AdminPassword string
}

// Load reads a local .env (if any) and the process environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":5000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_EXPIRES_IN", "168h")
	v.SetDefault("RAZORPAY_KEY_ID", "")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")
	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("DEFAULT_CURRENCY", "INR")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "no-reply@selfcheckout.local")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_TO_FILE", false)
	v.SetDefault("LOG_FILE", "logs/app.log")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("FIREBASE_CREDENTIALS_JSON", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	port := v.GetString("APP_PORT")
	if port != "" && !strings.Contains(port, ":") {
		port = ":" + port
	}
	return &Config{
		Env:                     strings.ToLower(v.GetString("APP_ENV")),
		AppPort:                 port,
		DatabaseURL:             v.GetString("DATABASE_URL"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		JWTExpiresIn:            v.GetDuration("JWT_EXPIRES_IN"),
		RazorpayKeyID:           v.GetString("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:       v.GetString("RAZORPAY_KEY_SECRET"),
		RazorpayBaseURL:         strings.TrimRight(v.GetString("RAZORPAY_BASE_URL"), "/"),
		DefaultCurrency:         strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		SMTPHost:                v.GetString("SMTP_HOST"),
		SMTPPort:                v.GetInt("SMTP_PORT"),
		SMTPUsername:            v.GetString("SMTP_USERNAME"),
		SMTPPassword:            v.GetString("SMTP_PASSWORD"),
		EmailFrom:               v.GetString("EMAIL_FROM"),
		FrontendURL:             strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		LogToFile:               v.GetBool("LOG_TO_FILE"),
		LogFile:                 v.GetString("LOG_FILE"),
		RateLimitMax:            v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:         v.GetDuration("RATE_LIMIT_WINDOW"),
		RedisURL:                v.GetString("REDIS_URL"),
		RabbitMQURL:             v.GetString("RABBITMQ_URL"),
		FirebaseProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		FirebaseCredentialsJSON: v.GetString("FIREBASE_CREDENTIALS_JSON"),
		AdminEmail:              v.GetString("ADMIN_EMAIL"),
		AdminPassword:           v.GetString("ADMIN_PASSWORD"),
	}
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Validate reports required settings that are missing. main only treats the result as
// fatal in production.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set"))
	}
	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN must be a positive duration"))
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// FirebaseEnabled reports whether identity-provider login can be configured.
func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != "" && (c.FirebaseCredentialsFile != "" || c.FirebaseCredentialsJSON != "")
}

// SMTPEnabled reports whether outbound email has a server to talk to.
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }
