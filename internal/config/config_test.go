package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := Default()
	original.Server.Port = 9090
	original.Auth.JWTSecret = "round-trip-secret"
	original.Images.Type = ImagesS3
	original.Images.MaxBytes = 1024
	original.Images.S3Bucket = "pets"
	original.Images.S3Region = "us-east-1"
	original.Images.S3Endpoint = "http://localhost:9000"
	original.Images.S3PublicURL = "http://localhost:9000/pets"

	var buf bytes.Buffer
	m := &Manager{}
	require.NoError(t, m.Write(&buf, original))

	got, err := m.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestManager_Read_PartialFileKeepsDefaults(t *testing.T) {
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(`
[server]
port = 3000

[auth]
token_ttl = "72h"

[images]
type = "memory"
`))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 72*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, ImagesMemory, cfg.Images.Type)
	assert.Equal(t, "data/petcommunity.db", cfg.Database.Path, "unset sections keep their defaults")
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
}

func TestManager_Read_Invalid(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(strings.NewReader("[server\nport = nope"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":          "8181",
		"DB_PATH":       ":memory:",
		"JWT_SECRET":    "from-env",
		"PETCTL_SERVER": "http://pets.example:8181",
		"PETCTL_HOME":   "/tmp/petctl",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "http://pets.example:8181", cfg.Client.ServerURL)
	assert.Equal(t, "/tmp/petctl", cfg.Client.Home)
	assert.Equal(t, "http://localhost:8181/auth/github/callback", cfg.Auth.GitHubCallbackURL)
	assert.False(t, cfg.Auth.GitHubEnabled())
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) string {
		if k == "PORT" {
			return "eighty"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database path"},
		{"filesystem without root", func(c *Config) { c.Images.FSRoot = "" }, "fs_root"},
		{"s3 without bucket", func(c *Config) { c.Images.Type = ImagesS3 }, "s3_bucket"},
		{"unknown store", func(c *Config) { c.Images.Type = "ftp" }, "unknown image store type"},
		{"zero upload limit", func(c *Config) { c.Images.MaxBytes = 0 }, "max_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ImagesFilesystem, cfg.Images.Type)
}

func TestInit(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "nested", "petcommunity.toml")

	require.NoError(t, Init(path, Default()))
	_, err := os.Stat(path)
	require.NoError(t, err)

	err = Init(path, Default())
	assert.ErrorContains(t, err, "already exists")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
