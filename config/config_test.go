package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Storage.Backend, cfg.Storage.Backend)
	assert.Equal(t, def.Storage.LockTimeout, cfg.Storage.LockTimeout)
	assert.Equal(t, def.SaveTimeout, cfg.SaveTimeout)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	data := `{
  "storage": {
    "backend": "sqlite",
    "sqlite_path": "/tmp/commands.db",
    "lock_timeout": "2s"
  },
  "save_timeout": "750ms",
  "log": {"max_size": 3, "use_scope_logs": true}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/commands.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 2*time.Second, cfg.Storage.LockTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.SaveTimeout)
	assert.Equal(t, 3, cfg.Log.MaxSize)
	assert.True(t, cfg.Log.UseScopeLogs)
	// Untouched keys keep their defaults
	assert.Equal(t, "commandset:", cfg.Storage.RedisPrefix)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("COMMANDSET_STORAGE_BACKEND", "redis")
	t.Setenv("COMMANDSET_STORAGE_REDIS_ADDR", "cache:6380")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "cache:6380", cfg.Storage.RedisAddr)
}

func TestLoadConfigUsesConfigEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"backend":"sqlite"}}`), 0644))
	t.Setenv("COMMANDSET_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"storage": `), 0644))
	_, err := LoadConfigFrom(bad)
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"storage":{"backend":"etcd"}}`), 0644))
	_, err = LoadConfigFrom(unknown)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	cfg := DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = "/var/lib/commandset.db"
	cfg.SaveTimeout = 3 * time.Second
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Backend, loaded.Storage.Backend)
	assert.Equal(t, cfg.Storage.SQLitePath, loaded.Storage.SQLitePath)
	assert.Equal(t, cfg.SaveTimeout, loaded.SaveTimeout)
}

func TestLogConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Dir = "/logs"
	cfg.Log.UseScopeLogs = true

	lc := cfg.LogConfig()
	assert.Equal(t, "/logs", lc.LogsDir)
	assert.True(t, lc.UseScopeLogs)
	assert.Equal(t, cfg.Log.MaxSize, lc.LogMaxSize)
}
