package xpmem

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults_FillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, defaultQueueCapacity, cfg.QueueCapacity)
	assert.Equal(t, defaultEnqueueTimeout, cfg.EnqueueTimeout)
	assert.Equal(t, defaultFlushTimeout, cfg.FlushTimeout)
	assert.Equal(t, defaultCloseTimeout, cfg.CloseTimeout)
	assert.Equal(t, defaultOpTimeout, cfg.OpTimeout)
	assert.Equal(t, defaultCacheCapacity, cfg.CacheCapacity)
	assert.Equal(t, 1, cfg.RetryAttempts)
	assert.NotNil(t, cfg.Logger)
}

func TestConfig_WithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		QueueCapacity: 16,
		RetryAttempts: 3,
	}.withDefaults()

	assert.Equal(t, 16, cfg.QueueCapacity)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestConfig_WithDefaults_ZeroCacheCapacityMeansUnbounded(t *testing.T) {
	cfg := Config{CacheCapacity: 0}.withDefaults()
	assert.Equal(t, defaultCacheCapacity, cfg.CacheCapacity,
		"未设置时落到默认容量")

	cfg = Config{CacheCapacity: -1}.withDefaults()
	assert.Equal(t, defaultCacheCapacity, cfg.CacheCapacity,
		"负值按未设置处理")
}

func TestConfigFromBytes_YAML_ParsesDurations(t *testing.T) {
	data := []byte(`
queue_capacity: 128
enqueue_timeout: 100ms
flush_timeout: 10s
single_version: true
`)

	cfg, err := ConfigFromBytes(data, FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.QueueCapacity)
	assert.Equal(t, 100*time.Millisecond, cfg.EnqueueTimeout)
	assert.Equal(t, 10*time.Second, cfg.FlushTimeout)
	assert.True(t, cfg.SingleVersion)
}

func TestConfigFromBytes_JSON_Parses(t *testing.T) {
	data := []byte(`{"queue_capacity": 64, "retry_attempts": 2, "retry_delay": "50ms"}`)

	cfg, err := ConfigFromBytes(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
}

func TestConfigFromBytes_EmptyData_ReturnsZeroConfig(t *testing.T) {
	cfg, err := ConfigFromBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestConfigFromBytes_UnknownFormat_Fails(t *testing.T) {
	_, err := ConfigFromBytes([]byte("a = 1"), Format("toml"))
	assert.Error(t, err)
}

func TestLoadConfig_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue_capacity: 32\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.QueueCapacity)
}

func TestLoadConfig_UnsupportedExtension_Fails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "store.toml"))
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile_Fails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
