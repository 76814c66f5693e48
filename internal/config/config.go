package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, parsed from environment variables.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port int    `env:"PORT"    envDefault:"4000"`

	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"tasktracker"`

	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:"," envDefault:"http://localhost:3000"`

	Token    TokenConfig
	SMTP     SMTPConfig
	SendGrid SendGridConfig

	EmailFrom string `env:"EMAIL_FROM" envDefault:"TaskTracker <no-reply@tasktracker.app>"`

	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"5m"`
	MailQueueSize    int           `env:"MAIL_QUEUE_SIZE"   envDefault:"256"`
}

// TokenConfig holds JWT signing configuration.
type TokenConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"tasktracker"`
}

// SMTPConfig holds configuration for the SMTP mail provider.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

// SendGridConfig holds configuration for the HTTP API mail provider.
// The provider is selected at startup when APIKey is present.
type SendGridConfig struct {
	APIKey  string `env:"SENDGRID_API_KEY"`
	BaseURL string `env:"SENDGRID_BASE_URL" envDefault:"https://api.sendgrid.com"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether the app runs in production mode.
// Controls cookie Secure/SameSite attributes.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// validate checks that required configuration is present.
func (c *Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("missing MONGODB_URI environment variable")
	}
	if c.Token.AccessSecret == "" {
		return fmt.Errorf("missing JWT_ACCESS_SECRET environment variable")
	}
	if c.Token.RefreshSecret == "" {
		return fmt.Errorf("missing JWT_REFRESH_SECRET environment variable")
	}
	if c.SendGrid.APIKey == "" && c.SMTP.Host == "" {
		return fmt.Errorf("no mail provider configured: set SENDGRID_API_KEY or SMTP_HOST")
	}

	return nil
}
