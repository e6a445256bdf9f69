package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageSaveLoadDelete(t *testing.T) {
	storage := NewStorage(t.TempDir())

	err := storage.Save("servers", "test-server", []byte("name: test-server\n"))
	require.NoError(t, err)

	data, err := storage.Load("servers", "test-server")
	require.NoError(t, err)
	assert.Equal(t, "name: test-server\n", string(data))

	names, err := storage.List("servers")
	require.NoError(t, err)
	assert.Equal(t, []string{"test-server"}, names)

	require.NoError(t, storage.Delete("servers", "test-server"))

	_, err = storage.Load("servers", "test-server")
	assert.Error(t, err)

	// deleting again is not an error
	assert.NoError(t, storage.Delete("servers", "test-server"))
}

func TestStorageListEmptyDir(t *testing.T) {
	storage := NewStorage(t.TempDir())
	names, err := storage.List("servers")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStorageSanitizesNames(t *testing.T) {
	dir := t.TempDir()
	storage := NewStorage(dir)

	require.NoError(t, storage.Save("servers", "../evil", []byte("x")))

	// The file must land inside the servers directory.
	entries, err := os.ReadDir(filepath.Join(dir, "servers"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = os.Stat(filepath.Join(dir, "evil.yaml"))
	assert.True(t, os.IsNotExist(err), "sanitized name must not escape the entity dir")
}

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultDashboardPort, cfg.Dashboard.Port)
	assert.Equal(t, DefaultTimeoutMs, cfg.Supervisor.DefaultTimeoutMs)
	assert.Equal(t, DefaultSessionQueueSize, cfg.Broadcast.SessionQueueSize)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "dashboard:\n  port: 9999\ncollector:\n  sampleIntervalMs: 1000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Dashboard.Port)
	assert.Equal(t, 1000, cfg.Collector.SampleIntervalMs)
	// unset fields fall back to defaults
	assert.Equal(t, DefaultHeartbeatIntervalMs, cfg.Broadcast.HeartbeatIntervalMs)
	assert.Equal(t, DefaultDashboardHost, cfg.Dashboard.Host)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("dashboard: ["), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}
