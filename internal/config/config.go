// Package config handles loading and validating the application
// configuration from a site.json file.
//
// The configuration file is expected to be a JSON object with database
// connection details, the HTTP listen address, admin credentials and the
// outbound email settings used for contact form notifications.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds all application configuration loaded from site.json.
// The file is read once at startup; changes require a restart.
type Config struct {
	// DBConn is the PostgreSQL host:port (e.g., "infra-postgres:5432").
	DBConn string `json:"dbConn"`

	// DBName is the PostgreSQL database name.
	DBName string `json:"dbName"`

	// DBUser is the PostgreSQL username.
	DBUser string `json:"dbUser"`

	// DBPass is the PostgreSQL password.
	DBPass string `json:"dbPass"`

	// Memory runs the site on an in-process store instead of PostgreSQL.
	// Content is lost on restart. The db* fields are not required.
	Memory bool `json:"memory,omitempty"`

	// ListenAddr is the HTTP listen address (default ":3000").
	ListenAddr string `json:"listenAddr"`

	// AdminKey is a shared secret for authenticating admin API calls.
	// Clients send it as "Authorization: Bearer <adminKey>".
	AdminKey string `json:"adminKey"`

	// AdminPasswordHash is a bcrypt hash of the admin console password.
	// When empty, password login is disabled and only AdminKey works.
	AdminPasswordHash string `json:"adminPasswordHash,omitempty"`

	// JWTSecret signs admin session tokens. When empty a random secret is
	// generated per process, so sessions do not survive a restart.
	JWTSecret string `json:"jwtSecret,omitempty"`

	// SiteURL is the public base URL (e.g., "https://m365itservices.co.uk").
	SiteURL string `json:"siteURL,omitempty"`

	// LogLevel is one of debug, info, warn, error (default "info").
	LogLevel string `json:"logLevel,omitempty"`

	// DevMode switches to human-readable console logs.
	DevMode bool `json:"devMode,omitempty"`

	// Email configures contact form notifications. When APIKey is empty,
	// notifications are only logged.
	Email EmailConfig `json:"email"`
}

// EmailConfig holds the Resend API settings.
type EmailConfig struct {
	APIKey string `json:"apiKey,omitempty"`

	// From is the sender address (e.g., "Website <noreply@example.com>").
	From string `json:"from,omitempty"`

	// To lists the recipients of new lead notifications.
	To []string `json:"to,omitempty"`

	// Endpoint overrides the Resend API URL. Used in tests.
	Endpoint string `json:"endpoint,omitempty"`
}

// Load reads and parses configuration from the given file path.
// It returns an error if the file cannot be read, parsed, or is missing
// required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks that all required fields are present.
func (c *Config) validate() error {
	if !c.Memory {
		switch {
		case c.DBConn == "":
			return fmt.Errorf("config: dbConn is required")
		case c.DBName == "":
			return fmt.Errorf("config: dbName is required")
		case c.DBUser == "":
			return fmt.Errorf("config: dbUser is required")
		case c.DBPass == "":
			return fmt.Errorf("config: dbPass is required")
		}
	}
	switch {
	case c.AdminKey == "":
		return fmt.Errorf("config: adminKey is required")
	case c.Email.APIKey != "" && c.Email.From == "":
		return fmt.Errorf("config: email.from is required when email.apiKey is set")
	case c.Email.APIKey != "" && len(c.Email.To) == 0:
		return fmt.Errorf("config: email.to is required when email.apiKey is set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logLevel %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// ConnString builds a PostgreSQL connection URI from the config fields.
// The password is URL-encoded to handle special characters safely.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPass),
		c.DBConn,
		url.QueryEscape(c.DBName),
	)
}
