package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GRADCREDITS_"

// Config defines the configuration of both the tracker and the store server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Remote    RemoteConfig    `yaml:"remote"`
	Store     StoreConfig     `yaml:"store"`
	Sync      SyncConfig      `yaml:"sync"`
	OAuth     OAuthConfig     `yaml:"oauth"`
}

// ServerConfig is the MCP HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig is the local database.
type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
	// ActivityRetention bounds the local activity journal. Zero keeps everything.
	ActivityRetention time.Duration `yaml:"activity_retention"`
}

// TransportConfig selects how the MCP server is exposed.
type TransportConfig struct {
	Mode        string `yaml:"mode"` // "stdio" or "http"
	AuthEnabled bool   `yaml:"auth_enabled"`
	APIKey      string `yaml:"api_key"`
}

// RemoteConfig points the tracker at a store server. An empty URL disables sync.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig is the store server.
type StoreConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`
	GraceWindow   time.Duration `yaml:"grace_window"`
	RevokeTimeout time.Duration `yaml:"revoke_timeout"`
}

// OAuthConfig configures the identity provider. Empty endpoint URLs mean Google.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	UserInfoURL  string   `yaml:"userinfo_url"`
	RevokeURL    string   `yaml:"revoke_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "gradcredits.db",
		},
		Log: LogConfig{
			Level:             "info",
			ActivityRetention: 90 * 24 * time.Hour,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Host:   "0.0.0.0",
			Port:   8090,
			DBPath: "gradcredits-store.db",
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			GraceWindow:   1500 * time.Millisecond,
			RevokeTimeout: 3 * time.Second,
		},
		OAuth: OAuthConfig{
			RedirectURL: "http://127.0.0.1:8080/oauth/callback",
		},
	}
}

// Load reads configuration from defaults, an optional .env file, an optional
// YAML file and GRADCREDITS_* environment variables, in that order of precedence.
func Load() (Config, error) {
	envFile := os.Getenv(envPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(envPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the binary cannot run with.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.Transport.Mode == "http" && c.Transport.AuthEnabled && c.Transport.APIKey == "" {
		return fmt.Errorf("transport.api_key is required when auth is enabled")
	}
	if c.Remote.URL != "" && c.OAuth.ClientID == "" {
		return fmt.Errorf("oauth.client_id is required when remote.url is set")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.DB.Path, "DB_PATH")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Path, "LOG_PATH")
	setString(&cfg.Transport.Mode, "TRANSPORT_MODE")
	setString(&cfg.Transport.APIKey, "TRANSPORT_API_KEY")
	setString(&cfg.Remote.URL, "REMOTE_URL")
	setString(&cfg.Remote.APIKey, "REMOTE_API_KEY")
	setString(&cfg.Store.Host, "STORE_HOST")
	setString(&cfg.Store.DBPath, "STORE_DB_PATH")
	setString(&cfg.OAuth.ClientID, "OAUTH_CLIENT_ID")
	setString(&cfg.OAuth.ClientSecret, "OAUTH_CLIENT_SECRET")
	setString(&cfg.OAuth.RedirectURL, "OAUTH_REDIRECT_URL")
	setString(&cfg.OAuth.AuthURL, "OAUTH_AUTH_URL")
	setString(&cfg.OAuth.TokenURL, "OAUTH_TOKEN_URL")
	setString(&cfg.OAuth.UserInfoURL, "OAUTH_USERINFO_URL")
	setString(&cfg.OAuth.RevokeURL, "OAUTH_REVOKE_URL")
	if v := os.Getenv(envPrefix + "OAUTH_SCOPES"); v != "" {
		cfg.OAuth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &cfg.Server.Port},
		{"STORE_PORT", &cfg.Store.Port},
	} {
		if err := setInt(f.dst, f.key); err != nil {
			return err
		}
	}

	for _, f := range []struct {
		key string
		dst *time.Duration
	}{
		{"REMOTE_TIMEOUT", &cfg.Remote.Timeout},
		{"ACTIVITY_RETENTION", &cfg.Log.ActivityRetention},
		{"SYNC_INTERVAL", &cfg.Sync.Interval},
		{"SYNC_GRACE_WINDOW", &cfg.Sync.GraceWindow},
		{"SYNC_REVOKE_TIMEOUT", &cfg.Sync.RevokeTimeout},
	} {
		if err := setDuration(f.dst, f.key); err != nil {
			return err
		}
	}

	return setBool(&cfg.Transport.AuthEnabled, "TRANSPORT_AUTH_ENABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}
