// Package config provides configuration loading for missionctl: a
// YAML-backed Config struct, DefaultConfig, Validate, and LoadFromFile,
// with env-var overrides layered on top of the loaded file. A ".env" file
// is loaded via godotenv before process startup, and individual settings
// fall back to os.Getenv.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete missionctl configuration.
type Config struct {
	Operator  OperatorConfig  `yaml:"operator"`
	Motion    MotionConfig    `yaml:"motion"`
	Planner   PlannerConfig   `yaml:"planner"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Camera    CameraConfig    `yaml:"camera"`
	Log       LogConfig       `yaml:"log"`
}

// OperatorConfig configures the operator console transport.
type OperatorConfig struct {
	// TransportKind is "pipe", "tcp", or "websocket".
	TransportKind string `yaml:"transport_kind"`
	Addr          string `yaml:"addr"`
	AsServer      bool   `yaml:"as_server"`
}

// MotionConfig configures the motion-controller transport.
type MotionConfig struct {
	TransportKind string `yaml:"transport_kind"`
	Addr          string `yaml:"addr"`
	AsServer      bool   `yaml:"as_server"`
}

// PlannerConfig configures the Route Planner HTTP client.
type PlannerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RecognizerConfig configures the Image Recogniser HTTP client.
type RecognizerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CameraConfig selects and configures the capture backend.
type CameraConfig struct {
	// Kind is "hardware" or "loopback".
	Kind        string `yaml:"kind"`
	Binary      string `yaml:"binary"`
	OutDir      string `yaml:"out_dir"`
	FixturePath string `yaml:"fixture_path"`
}

// LogConfig configures the mission-log directory.
type LogConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults (loopback transports
// and capture, suitable for local testing without real hardware).
func DefaultConfig() *Config {
	return &Config{
		Operator: OperatorConfig{
			TransportKind: "pipe",
			Addr:          "/tmp/missionctl-operator.fifo",
		},
		Motion: MotionConfig{
			TransportKind: "pipe",
			Addr:          "/tmp/missionctl-motion.fifo",
		},
		Planner: PlannerConfig{
			BaseURL: "http://localhost:8081",
			Timeout: 20 * time.Second,
		},
		Recognizer: RecognizerConfig{
			BaseURL: "http://localhost:8082",
			Timeout: 30 * time.Second,
		},
		Camera: CameraConfig{
			Kind:        "loopback",
			Binary:      "libcamera-still",
			OutDir:      "/tmp/missionctl-captures",
			FixturePath: "testdata/fixture.jpg",
		},
		Log: LogConfig{
			Dir: "./missions",
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Operator.TransportKind {
	case "pipe", "tcp", "websocket":
	default:
		return fmt.Errorf("operator.transport_kind must be pipe, tcp, or websocket, got %q", c.Operator.TransportKind)
	}
	switch c.Motion.TransportKind {
	case "pipe", "tcp", "websocket":
	default:
		return fmt.Errorf("motion.transport_kind must be pipe, tcp, or websocket, got %q", c.Motion.TransportKind)
	}
	if c.Operator.Addr == "" {
		return fmt.Errorf("operator.addr is required")
	}
	if c.Motion.Addr == "" {
		return fmt.Errorf("motion.addr is required")
	}
	if c.Planner.BaseURL == "" {
		return fmt.Errorf("planner.base_url is required")
	}
	if c.Recognizer.BaseURL == "" {
		return fmt.Errorf("recognizer.base_url is required")
	}
	switch c.Camera.Kind {
	case "hardware", "loopback":
	default:
		return fmt.Errorf("camera.kind must be hardware or loopback, got %q", c.Camera.Kind)
	}
	if c.Log.Dir == "" {
		return fmt.Errorf("log.dir is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, starting from
// DefaultConfig so unspecified fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides layers environment-variable overrides on top of the
// loaded file, giving explicit env vars precedence over both the file and
// the compiled-in defaults.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MISSIONCTL_PLANNER_URL"); v != "" {
		c.Planner.BaseURL = v
	}
	if v := os.Getenv("MISSIONCTL_RECOGNIZER_URL"); v != "" {
		c.Recognizer.BaseURL = v
	}
	if v := os.Getenv("MISSIONCTL_OPERATOR_ADDR"); v != "" {
		c.Operator.Addr = v
	}
	if v := os.Getenv("MISSIONCTL_MOTION_ADDR"); v != "" {
		c.Motion.Addr = v
	}
	if v := os.Getenv("MISSIONCTL_LOG_DIR"); v != "" {
		c.Log.Dir = v
	}
}
