package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level warden configuration file.
type YAMLConfig struct {
	Store            StoreYAML        `yaml:"store"`
	Auth             AuthConfig       `yaml:"auth"`
	Identity         IdentityConfig   `yaml:"identity"`
	Admins           []AdminYAML      `yaml:"admins"`
	LevelDailyLimits []LevelLimitYAML `yaml:"level_daily_limits"`
	Logging          LoggingConfig    `yaml:"logging"`
}

// StoreYAML selects the credential store. With Enabled false the admin
// allowlist and level limits below are served read-only from this file.
type StoreYAML struct {
	Enabled         bool   `yaml:"enabled"`
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	DataDir         string `yaml:"data_dir"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// AuthConfig controls password hashing and session tokens.
type AuthConfig struct {
	PasswordSalt   string `yaml:"password_salt"`
	TokenTTL       string `yaml:"token_ttl"`
	SessionBackend string `yaml:"session_backend"` // sql or memory
	CacheSize      int    `yaml:"cache_size"`
}

// IdentityConfig holds the federated identity provider registrations.
type IdentityConfig struct {
	Google GoogleConfig `yaml:"google"`
}

// GoogleConfig registers the root (web) client and any named mobile
// clients. RedirectURIs maps a redirect context to the URI registered for it.
type GoogleConfig struct {
	ClientID     string            `yaml:"client_id"`
	ClientSecret string            `yaml:"client_secret"`
	RedirectURIs map[string]string `yaml:"redirect_uris"`
	Clients      map[string]string `yaml:"clients"`
	Issuers      []string          `yaml:"issuers"`
	CertsURL     string            `yaml:"certs_url"`
	UserInfoURL  string            `yaml:"userinfo_url"`
	AuthURL      string            `yaml:"auth_url"`
	TokenURL     string            `yaml:"token_url"`
	Timeout      string            `yaml:"timeout"`
}

// AdminYAML is one entry of the static admin allowlist.
type AdminYAML struct {
	Email                     string                             `yaml:"email"`
	PasswordHash              string                             `yaml:"password_hash"`
	Level                     int                                `yaml:"level"`
	Active                    *bool                              `yaml:"active"`
	ReadOnly                  bool                               `yaml:"read_only"`
	BlockPrivilege            bool                               `yaml:"block_privilege"`
	AnalyticsPrivilege        bool                               `yaml:"analytics_privilege"`
	ManageAdminsPrivilege     bool                               `yaml:"manage_admins_privilege"`
	FetchMotivationsPrivilege bool                               `yaml:"fetch_motivations_privilege"`
	Company                   string                             `yaml:"company"`
	Forms                     []string                           `yaml:"forms"`
	DailyLimitConfig          map[string]DailyLimitThresholdYAML `yaml:"daily_limit_config"`
}

// DailyLimitThresholdYAML is an {alert, block} pair in the config file.
type DailyLimitThresholdYAML struct {
	Alert int `yaml:"alert"`
	Block int `yaml:"block"`
}

// LevelLimitYAML is a level-wide daily limit default in the config file.
type LevelLimitYAML struct {
	Level    int    `yaml:"level"`
	Category string `yaml:"category"`
	Alert    int    `yaml:"alert"`
	Block    int    `yaml:"block"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file on top of
// DefaultYAMLConfig. Environment variables referenced as ${VAR_NAME} in the
// file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Store: StoreYAML{
			Enabled:         true,
			Driver:          "sqlite",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: "5m",
		},
		Auth: AuthConfig{
			TokenTTL:       "8h",
			SessionBackend: "sql",
			CacheSize:      10000,
		},
		Identity: IdentityConfig{
			Google: GoogleConfig{
				Issuers:     []string{"accounts.google.com", "https://accounts.google.com"},
				CertsURL:    "https://www.googleapis.com/oauth2/v3/certs",
				UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
				AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:    "https://oauth2.googleapis.com/token",
				Timeout:     "10s",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StoreConfig converts the store section into a StoreConfig.
func (c *YAMLConfig) StoreConfig() (StoreConfig, error) {
	lifetime, err := parseDuration("store.conn_max_lifetime", c.Store.ConnMaxLifetime, 0)
	if err != nil {
		return StoreConfig{}, err
	}
	return StoreConfig{
		Driver:          c.Store.Driver,
		DSN:             c.Store.DSN,
		DataDir:         c.Store.DataDir,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: lifetime,
	}, nil
}

// TokenTTL returns the configured session lifetime, 8h when unset.
func (c *YAMLConfig) TokenTTL() (time.Duration, error) {
	return parseDuration("auth.token_ttl", c.Auth.TokenTTL, 8*time.Hour)
}

// IdentityTimeout returns the identity provider request timeout.
func (c *YAMLConfig) IdentityTimeout() (time.Duration, error) {
	return parseDuration("identity.google.timeout", c.Identity.Google.Timeout, 10*time.Second)
}

func parseDuration(key, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
