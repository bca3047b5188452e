package conf

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// EchoConfig is the YAML configuration for cmd/echoserver, the
// demonstration harness that wires a reactor.TcpServer to a config file
// the way the teacher's cmd/run wires internal/server to internal/conf.
// This is demo-only plumbing; the reactor library itself takes no
// configuration beyond constructor options (spec.md §6).
type EchoConfig struct {
	Listen string `yaml:"listen"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Threads       int  `yaml:"threads"`
		ReusePort     bool `yaml:"reuse_port"`
		HighWaterMark int  `yaml:"high_water_mark"`
	} `yaml:"server"`
}

// LoadFromFile reads and parses path, applying setDefaults before
// returning. Named to match the shape of cmd/run/run.go's call to
// conf.LoadFromFile, though the teacher's own LoadFromFile was not part
// of the retrieved source and is written fresh here.
func LoadFromFile(path string) (*EchoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conf: read %s: %w", path, err)
	}
	var cfg EchoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("conf: parse %s: %w", path, err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// setDefaults fills in zero-valued fields, scaling the worker-thread
// count to the host's CPU count the same way Transport.setDefaults
// scales buffer sizes in the teacher's internal/conf.
func (c *EchoConfig) setDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:7007"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Threads == 0 {
		c.Server.Threads = clampInt(sysCPUCount(), 1, 8)
	}
	if c.Server.HighWaterMark == 0 {
		c.Server.HighWaterMark = 64 * 1024 * 1024
	}
}
