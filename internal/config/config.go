package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "STOREFRONT"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = "sqlite"
	defaultDatabasePath    = "storefront.db"
	defaultLogLevel        = "info"
	defaultSessionTTL      = 30 * time.Minute
	defaultMagicLinkTTL    = 15 * time.Minute
	defaultFrontendBaseURL = "http://localhost:3000"
	defaultSMTPPort        = 587
)

// AppConfig captures runtime configuration for the storefront API server.
type AppConfig struct {
	HTTPAddress string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	LogLevel string

	SessionSigningSecret string
	SessionTTL           time.Duration

	GoogleClientID string
	GoogleJWKSURL  string

	WebhookSigningSecret string

	MagicLinkTTL    time.Duration
	FrontendBaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	CatalogBaseURL string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.ttl_minutes", int(defaultSessionTTL.Minutes()))
	configViper.SetDefault("magiclink.ttl_minutes", int(defaultMagicLinkTTL.Minutes()))
	configViper.SetDefault("frontend.base_url", defaultFrontendBaseURL)
	configViper.SetDefault("smtp.port", defaultSMTPPort)
	configViper.SetDefault("google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabaseDriver:       strings.ToLower(configViper.GetString("database.driver")),
		DatabasePath:         configViper.GetString("database.path"),
		DatabaseDSN:          configViper.GetString("database.dsn"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionTTL:           time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		GoogleClientID:       configViper.GetString("google.client_id"),
		GoogleJWKSURL:        configViper.GetString("google.jwks_url"),
		WebhookSigningSecret: configViper.GetString("webhook.signing_secret"),
		MagicLinkTTL:         time.Duration(configViper.GetInt("magiclink.ttl_minutes")) * time.Minute,
		FrontendBaseURL:      configViper.GetString("frontend.base_url"),
		SMTPHost:             configViper.GetString("smtp.host"),
		SMTPPort:             configViper.GetInt("smtp.port"),
		SMTPUsername:         configViper.GetString("smtp.username"),
		SMTPPassword:         configViper.GetString("smtp.password"),
		SMTPFrom:             configViper.GetString("smtp.from"),
		CatalogBaseURL:       configViper.GetString("catalog.base_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.WebhookSigningSecret) == "" {
		return fmt.Errorf("webhook.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if c.MagicLinkTTL <= 0 {
		return fmt.Errorf("magiclink.ttl_minutes must be positive")
	}
	return nil
}
