package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "REPLICATE_TIMEOUT_SECONDS", "GENERATE_CONCURRENCY", "CORS_ALLOW_ORIGINS", "ADMIN_TOKEN", "ADMIN_KEY", "BUNNY_STORAGE_ACCESS_KEY", "MIRROR_ALLOWED_HOSTS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 180*time.Second, cfg.ReplicateTimeout)
	assert.Equal(t, 4, cfg.GenerateConcurrency)
	assert.Empty(t, cfg.CORSAllowOrigins)
	assert.Empty(t, cfg.AdminToken)
	assert.False(t, cfg.BunnyConfigured())
	assert.Equal(t, []string{"replicate.delivery"}, cfg.MirrorAllowedHosts)
	assert.Equal(t, "headshots", cfg.MySQL.DBName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GENERATE_CONCURRENCY", "8")
	t.Setenv("REPLICATE_TIMEOUT_SECONDS", "2")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("ADMIN_KEY", "legacy-key")
	t.Setenv("BUNNY_STORAGE_ACCESS_KEY", "k")
	t.Setenv("BUNNY_STORAGE_ZONE", "z")
	t.Setenv("BUNNY_PULL_BASE_URL", "https://cdn.example")
	t.Setenv("MIRROR_ALLOWED_HOSTS", "replicate.delivery, pbxt.example.com")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 8, cfg.GenerateConcurrency)
	assert.Equal(t, 180*time.Second, cfg.ReplicateTimeout, "out-of-range values fall back")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "legacy-key", cfg.AdminToken)
	assert.True(t, cfg.BunnyConfigured())
	assert.Equal(t, []string{"replicate.delivery", "pbxt.example.com"}, cfg.MirrorAllowedHosts)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("HEADSHOTS_DOTENV_PROBE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HEADSHOTS_DOTENV_PROBE", "")
	os.Unsetenv("HEADSHOTS_DOTENV_PROBE")

	LoadDotEnv(filepath.Join(dir, "missing.env"), path)

	assert.Equal(t, "from-file", os.Getenv("HEADSHOTS_DOTENV_PROBE"))
}
