package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
capture:
  device_index: 2
  bpf_filter: "tcp and port 443"
reassembly:
  gap_timeout: 1500ms
api:
  listen_addr: "127.0.0.1:9000"
report:
  enabled: true
  endpoint: "http://example.com/report"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// 1. Explicit keys override.
	assert.Equal(t, 2, cfg.Capture.DeviceIndex)
	assert.Equal(t, "tcp and port 443", cfg.Capture.BPFFilter)
	assert.Equal(t, 1500*time.Millisecond, cfg.Reassembly.GapTimeout.Std())
	assert.Equal(t, "127.0.0.1:9000", cfg.API.ListenAddr)
	assert.True(t, cfg.Report.Enabled)

	// 2. Omitted keys keep their defaults.
	assert.Equal(t, int32(65535), cfg.Capture.SnapshotLen)
	assert.Equal(t, 90*time.Second, cfg.Reassembly.FlowIdleTimeout.Std())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Probe.NATSURL)
	assert.Equal(t, 4, cfg.Report.MaxRetries)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "capture:\n  sample_window: \"three seconds\"\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "capture: [unbalanced")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDefaultIsRunnable(t *testing.T) {
	cfg := Default()
	assert.Equal(t, -1, cfg.Capture.DeviceIndex, "auto-detection by default")
	assert.Equal(t, "tcp", cfg.Capture.BPFFilter)
	assert.Equal(t, ":8989", cfg.API.ListenAddr)
	assert.Equal(t, 3*time.Second, cfg.Reassembly.GapTimeout.Std())
	assert.Equal(t, 4<<20, cfg.Reassembly.MaxBufferedPerStream)
	assert.False(t, cfg.Report.Enabled)
	assert.False(t, cfg.History.Enabled)
}
