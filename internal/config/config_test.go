package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	req.Equal("8080", cfg.Port)
	req.Equal(BackendPostgres, cfg.StoreBackend)
	req.Equal(BackendRedis, cfg.RegistryBackend)
	req.Equal(time.Second, cfg.TickInterval)
	req.Equal(time.Second, cfg.MinuteDuration)
	req.Equal(24*time.Hour, cfg.SocketTTL)
	req.Equal([]string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("MATCHCENTER_PORT", "9090")
	t.Setenv("MATCHCENTER_STORE", "memory")
	t.Setenv("MATCHCENTER_MINUTE_DURATION", "250ms")
	t.Setenv("MATCHCENTER_ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/mc")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	req.Equal("9090", cfg.Port)
	req.Equal(BackendMemory, cfg.StoreBackend)
	req.Equal(250*time.Millisecond, cfg.MinuteDuration)
	req.Equal([]string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	req.Equal("postgres://u:p@db:5432/mc", cfg.DatabaseURL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("MATCHCENTER_REGISTRY=memory\nMATCHCENTER_TICK_WORKERS=2\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("MATCHCENTER_REGISTRY")
		_ = os.Unsetenv("MATCHCENTER_TICK_WORKERS")
	})

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(BackendMemory, cfg.RegistryBackend)
	req.Equal(2, cfg.TickWorkers)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("MATCHCENTER_STORE", "mongo")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.ErrorContains(t, err, "invalid config")
}

func TestLoad_RejectsNonPositiveDuration(t *testing.T) {
	t.Setenv("MATCHCENTER_TICK_INTERVAL", "0s")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.Error(t, err)
}
