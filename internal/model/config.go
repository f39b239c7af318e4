package model

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the daemon configuration, loaded from YAML with environment
// overrides applied on top by the CLI.
type Config struct {
	NATSURL   string `yaml:"nats_url"`
	ExportDir string `yaml:"export_dir"`
	Presets   string `yaml:"presets,omitempty"` // optional catalog override file
	Verbose   bool   `yaml:"verbose"`
	LogFormat string `yaml:"log_format"`
	Engine    Engine `yaml:"engine"`
}

// Engine holds tuning knobs of the phase-1 engine.
type Engine struct {
	Shards int `yaml:"shards"` // 0 => one shard per CPU, capped at 8
}

func DefaultConfig() Config {
	return Config{
		NATSURL:   "nats://127.0.0.1:4222",
		ExportDir: "./exports",
		LogFormat: LogFormatJSON,
	}
}

// LoadConfig decodes and validates YAML from r. Unknown keys are rejected
// so a typo fails loudly instead of silently using a default.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.NATSURL == "" {
		return fmt.Errorf("nats_url must not be empty")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("export_dir must not be empty")
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("log_format %q is not supported, expected %q or %q",
			c.LogFormat, LogFormatJSON, LogFormatText)
	}
	if c.Engine.Shards < 0 {
		return fmt.Errorf("engine.shards must not be negative")
	}
	return nil
}
