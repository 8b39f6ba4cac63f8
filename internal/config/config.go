// Package config loads the TOML configuration shared by cmd/server and
// cmd/petctl, then applies environment overrides on top of it.
//
// Precedence (lowest to highest): built-in defaults → config file → env vars.
// A missing config file is not an error; every setting has a usable default
// except the JWT secret, which the server requires from somewhere.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Image store types.
const (
	ImagesFilesystem = "filesystem"
	ImagesS3         = "s3"
	ImagesMemory     = "memory"
)

// Config is the full configuration file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Images   ImagesConfig   `toml:"images"`
	Client   ClientConfig   `toml:"client"`
}

type ServerConfig struct {
	Port            int           `toml:"port"`
	StaticDir       string        `toml:"static_dir"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // ":memory:" for a throwaway database
}

// AuthConfig holds token and GitHub OAuth settings. GitHub sign-in is only
// enabled when both the client ID and secret are set.
type AuthConfig struct {
	JWTSecret          string        `toml:"jwt_secret"`
	TokenTTL           time.Duration `toml:"token_ttl"`
	GitHubClientID     string        `toml:"github_client_id,omitempty"`
	GitHubClientSecret string        `toml:"github_client_secret,omitempty"`
	GitHubCallbackURL  string        `toml:"github_callback_url,omitempty"`
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

// ImagesConfig selects where uploaded images are stored.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ImagesConfig struct {
	Type     string `toml:"type"`      // "filesystem", "s3" or "memory"
	MaxBytes int64  `toml:"max_bytes"` // upload size limit

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot    string `toml:"fs_root,omitempty"`
	URLPrefix string `toml:"url_prefix,omitempty"` // public path the files are served under

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"` // MinIO or other S3-compatible endpoint
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
	S3PublicURL string `toml:"s3_public_url,omitempty"` // base URL objects are readable at
}

// ClientConfig configures petctl.
type ClientConfig struct {
	ServerURL string        `toml:"server_url"`
	Home      string        `toml:"home"` // session records live here
	Timeout   time.Duration `toml:"timeout"`
}

// Default returns the configuration used when no file or env var says otherwise.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			StaticDir:       "web/static",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/petcommunity.db"},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Images: ImagesConfig{
			Type:      ImagesFilesystem,
			MaxBytes:  5 << 20,
			FSRoot:    "data/uploads",
			URLPrefix: "/uploads/",
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
			Home:      filepath.Join(home, ".petctl"),
			Timeout:   10 * time.Second,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r on top of the defaults, so a file only needs
// the settings it changes.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads the config file at path (if it exists), applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			m := &Manager{}
			if cfg, err = m.Read(f); err != nil {
				return nil, fmt.Errorf("reading config from %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes cfg to a new file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables. getenv is
// os.Getenv in production and a map lookup in tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
		c.Server.Port = port
	}
	setString(&c.Database.Path, getenv("DB_PATH"))
	setString(&c.Auth.JWTSecret, getenv("JWT_SECRET"))
	setString(&c.Auth.GitHubClientID, getenv("GITHUB_CLIENT_ID"))
	setString(&c.Auth.GitHubClientSecret, getenv("GITHUB_CLIENT_SECRET"))
	setString(&c.Auth.GitHubCallbackURL, getenv("GITHUB_CALLBACK_URL"))
	setString(&c.Images.S3AccessKey, getenv("S3_ACCESS_KEY"))
	setString(&c.Images.S3SecretKey, getenv("S3_SECRET_KEY"))
	setString(&c.Client.ServerURL, getenv("PETCTL_SERVER"))
	setString(&c.Client.Home, getenv("PETCTL_HOME"))

	if c.Auth.GitHubCallbackURL == "" {
		c.Auth.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Server.Port)
	}
	return nil
}

// Validate checks settings that would otherwise fail later and further from
// their cause. The JWT secret is checked by the server, not here, so that
// petctl can share the file without knowing it.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must be set")
	}
	if c.Images.MaxBytes <= 0 {
		return fmt.Errorf("images max_bytes must be positive")
	}

	switch c.Images.Type {
	case ImagesMemory:
	case ImagesFilesystem:
		if c.Images.FSRoot == "" {
			return fmt.Errorf("filesystem image store requires fs_root to be set")
		}
	case ImagesS3:
		if c.Images.S3Bucket == "" || c.Images.S3Region == "" {
			return fmt.Errorf("s3 image store requires s3_bucket and s3_region to be set")
		}
	default:
		return fmt.Errorf("unknown image store type: %s", c.Images.Type)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
