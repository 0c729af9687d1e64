package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultPassword, cfg.Password)
	assert.Equal(t, DefaultStorage, cfg.Storage)
	assert.Equal(t, DefaultRootID, cfg.RootID)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultReminder, cfg.ReminderTime)
	assert.NotEmpty(t, cfg.ServerID)
	assert.Empty(t, cfg.Peers)
	assert.Nil(t, cfg.Credentials)
	assert.False(t, cfg.InitFolders)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"LUMI_PORT":              "9000",
		"LUMI_STORAGE":           "memory://local",
		"LUMI_CACHE_TTL":         "1m",
		"LUMI_FETCH_CONCURRENCY": "8",
		"LUMI_PEERS":             " ws://a:1/ws , ,ws://b:2/ws",
		"LUMI_SERVER_ID":         "node-1",
		"LUMI_LOG_PRETTY":        "true",
		"LUMI_INIT_FOLDERS":      "1",
		"GCP_CREDENTIALS":        `{"type":"service_account"}`,
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "memory://local", cfg.Storage)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, []string{"ws://a:1/ws", "ws://b:2/ws"}, cfg.Peers)
	assert.Equal(t, "node-1", cfg.ServerID)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.InitFolders)
	assert.JSONEq(t, `{"type":"service_account"}`, string(cfg.Credentials))
}

func TestInvalidValues(t *testing.T) {
	for name, value := range map[string]string{
		"LUMI_CACHE_TTL":         "soon",
		"LUMI_FETCH_CONCURRENCY": "0",
		"LUMI_LOG_PRETTY":        "maybe",
		"LUMI_INIT_FOLDERS":      "yes please",
	} {
		_, err := FromEnv(envOf(map[string]string{name: value}))
		assert.Error(t, err, name)
		assert.Contains(t, err.Error(), name)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LUMI_REMINDER_LIST=Work\n"), 0o600))
	t.Setenv("LUMI_REMINDER_LIST", "")
	os.Unsetenv("LUMI_REMINDER_LIST")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Work", cfg.ReminderList)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
