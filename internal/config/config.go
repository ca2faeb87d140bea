package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Verification modes for bench.verify.
const (
	VerifyReference = "reference"
	VerifyFloat64   = "float64"
	VerifyFreivalds = "freivalds"
	VerifyNone      = "none"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"logger"`
	Engine  EngineConfig  `yaml:"engine"`
	Bench   BenchConfig   `yaml:"bench"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type EngineConfig struct {
	// Backend is auto, vulkan or cpu.
	Backend            string   `yaml:"backend"`
	ShaderPath         string   `yaml:"shaderPath"`
	MatrixSize         int      `yaml:"matrixSize"`
	TileSize           int      `yaml:"tileSize"`
	InstanceExtensions []string `yaml:"instanceExtensions"`
	DeviceExtensions   []string `yaml:"deviceExtensions"`
	ValidationLayers   []string `yaml:"validationLayers"`
	DebugNames         bool     `yaml:"debugNames"`
	// Sync is idle or fence.
	Sync string `yaml:"sync"`
}

type BenchConfig struct {
	Iterations      int     `yaml:"iterations"`
	Seed            uint64  `yaml:"seed"`
	Tolerance       float32 `yaml:"tolerance"`
	Verify          string  `yaml:"verify"`
	FreivaldsRounds int     `yaml:"freivaldsRounds"`
}

type MetricsConfig struct {
	// ListenAddress serves /metrics when non-empty.
	ListenAddress string `yaml:"listenAddress"`
}

// Default returns the configuration used for any field a file leaves unset.
func Default() *Config {
	var c Config
	c.Logger.Verbosity = "info"
	c.Logger.Encoding = "console"
	c.Engine = EngineConfig{
		Backend:    "auto",
		MatrixSize: 1024,
		TileSize:   16,
		Sync:       "idle",
	}
	c.Bench = BenchConfig{
		Iterations:      10,
		Seed:            1,
		Tolerance:       0.01,
		Verify:          VerifyReference,
		FreivaldsRounds: 8,
	}
	return &c
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Validate checks field ranges and enum values.
func (c *Config) Validate() error {
	e := c.Engine
	switch e.Backend {
	case "auto", "vulkan", "cpu":
	default:
		return fmt.Errorf("engine.backend must be auto, vulkan or cpu, got %q", e.Backend)
	}
	if e.MatrixSize <= 0 {
		return fmt.Errorf("engine.matrixSize must be positive, got %d", e.MatrixSize)
	}
	if e.TileSize <= 0 {
		return fmt.Errorf("engine.tileSize must be positive, got %d", e.TileSize)
	}
	if e.MatrixSize%e.TileSize != 0 {
		return fmt.Errorf("engine.matrixSize %d is not a multiple of engine.tileSize %d", e.MatrixSize, e.TileSize)
	}
	switch e.Sync {
	case "idle", "fence":
	default:
		return fmt.Errorf("engine.sync must be idle or fence, got %q", e.Sync)
	}

	b := c.Bench
	if b.Iterations <= 0 {
		return fmt.Errorf("bench.iterations must be positive, got %d", b.Iterations)
	}
	if b.Tolerance < 0 {
		return fmt.Errorf("bench.tolerance must not be negative, got %g", b.Tolerance)
	}
	switch b.Verify {
	case VerifyReference, VerifyFloat64, VerifyNone:
	case VerifyFreivalds:
		if b.FreivaldsRounds <= 0 {
			return fmt.Errorf("bench.freivaldsRounds must be positive, got %d", b.FreivaldsRounds)
		}
	default:
		return fmt.Errorf("bench.verify must be reference, float64, freivalds or none, got %q", b.Verify)
	}
	return nil
}
