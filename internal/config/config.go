package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CaptureConfig controls device selection and the live capture loop.
type CaptureConfig struct {
	// DeviceIndex selects an interface explicitly; -1 enables auto-detection.
	DeviceIndex int    `yaml:"device_index"`
	BPFFilter   string `yaml:"bpf_filter"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`

	// SampleWindow is how long auto-detection listens on each candidate.
	SampleWindow Duration `yaml:"sample_window"`
}

// ReassemblyConfig bounds the flow reassembler's buffers.
type ReassemblyConfig struct {
	// FlowIdleTimeout evicts flows with no traffic for this long.
	FlowIdleTimeout Duration `yaml:"flow_idle_timeout"`

	// GapTimeout is how long a stream waits for a missing segment before
	// dropping the buffered tail and resynchronizing.
	GapTimeout Duration `yaml:"gap_timeout"`

	// MaxBufferedPerStream caps out-of-order bytes held per direction.
	MaxBufferedPerStream int `yaml:"max_buffered_per_stream"`
}

// ProbeConfig configures the NATS segment transport for the split
// probe/engine deployment.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// APIConfig configures the HTTP query surface.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ReportConfig configures the battle-report uploader.
type ReportConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Endpoint    string   `yaml:"endpoint"`
	MaxRetries  int      `yaml:"max_retries"`
	BaseBackoff Duration `yaml:"base_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
	Timeout     Duration `yaml:"timeout"`
}

// ClickHouseConfig holds connection details for the battle history store.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Reassembly ReassemblyConfig `yaml:"reassembly"`
	Probe      ProbeConfig      `yaml:"probe"`
	API        APIConfig        `yaml:"api"`
	Report     ReportConfig     `yaml:"report"`
	History    ClickHouseConfig `yaml:"history"`
}

// Default returns a configuration with workable values for every knob, so a
// missing config file (or missing keys) still yields a runnable meter.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			DeviceIndex:  -1,
			BPFFilter:    "tcp",
			SnapshotLen:  65535,
			Promiscuous:  false,
			SampleWindow: Duration(3 * time.Second),
		},
		Reassembly: ReassemblyConfig{
			FlowIdleTimeout:      Duration(90 * time.Second),
			GapTimeout:           Duration(3 * time.Second),
			MaxBufferedPerStream: 4 << 20,
		},
		Probe: ProbeConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "cs.segments.raw",
		},
		API: APIConfig{
			ListenAddr: ":8989",
		},
		Report: ReportConfig{
			MaxRetries:  4,
			BaseBackoff: Duration(500 * time.Millisecond),
			MaxBackoff:  Duration(8 * time.Second),
			Timeout:     Duration(10 * time.Second),
		},
		History: ClickHouseConfig{
			Host:     "127.0.0.1",
			Port:     9000,
			Database: "default",
		},
	}
}

// LoadConfig reads the configuration from a YAML file, layered over Default.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return cfg, nil
}
