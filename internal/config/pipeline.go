package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"metasync/internal/spec"
)

const (
	SupportedSchema = "v1"

	DefaultInterval     = time.Second
	DefaultTxTimeout    = 30 * time.Second
	DefaultSafetyMargin = 10 * time.Second
	DefaultOffsetsPath  = "metasync.db"
	DefaultDriver       = "sarama"
)

var ErrInvalidPipeline = errors.New("invalid pipeline")

// LoadPipelineSpec parses a pipeline YAML, validates it and resolves every
// referenced config path relative to the pipeline file.
func LoadPipelineSpec(path string) (spec.File, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, fmt.Errorf("pipeline schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}

	applyDefaults(&cfg)

	dir := filepath.Dir(path)
	for i := range cfg.Sources {
		cfg.Sources[i].Config = resolve(dir, cfg.Sources[i].Config)
	}
	cfg.SinkConfigs.Navigator = resolve(dir, cfg.SinkConfigs.Navigator)
	cfg.SinkConfigs.Kafka = resolve(dir, cfg.SinkConfigs.Kafka)
	cfg.Offsets.Path = resolve(dir, cfg.Offsets.Path)

	return cfg, Validate(cfg)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func applyDefaults(c *spec.File) {
	if c.Instance.Count == 0 {
		c.Instance.Count = 1
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = DefaultInterval
	}
	if c.Schedule.TxTimeout == 0 {
		c.Schedule.TxTimeout = DefaultTxTimeout
	}
	if c.Schedule.SafetyMargin == 0 {
		c.Schedule.SafetyMargin = DefaultSafetyMargin
	}
	if c.Offsets.Path == "" {
		c.Offsets.Path = DefaultOffsetsPath
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Driver == "" {
			s.Driver = DefaultDriver
		}
		if s.Name == "" {
			s.Name = s.Kind
		}
	}
}

// Validate rejects pipelines the process must refuse to start with.
func Validate(c spec.File) error {
	if c.Instance.Count <= 0 {
		return fmt.Errorf("%w: instance.count should be > 0, got %d", ErrInvalidPipeline, c.Instance.Count)
	}
	if c.Instance.ID < 0 || c.Instance.ID >= c.Instance.Count {
		return fmt.Errorf("%w: instance.id %d outside [0,%d)", ErrInvalidPipeline, c.Instance.ID, c.Instance.Count)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("%w: schedule.interval should be > 0", ErrInvalidPipeline)
	}
	if c.Schedule.TxTimeout <= c.Schedule.SafetyMargin {
		return fmt.Errorf("%w: schedule.tx_timeout (%s) must exceed safety_margin (%s)",
			ErrInvalidPipeline, c.Schedule.TxTimeout, c.Schedule.SafetyMargin)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one source is required", ErrInvalidPipeline)
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		switch s.Kind {
		case spec.KindAudit, spec.KindMetadata:
		default:
			return fmt.Errorf("%w: source %q has unknown kind %q", ErrInvalidPipeline, s.Name, s.Kind)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidPipeline, s.Name)
		}
		seen[s.Name] = true
	}
	if len(c.Sinks) == 0 {
		return fmt.Errorf("%w: at least one sink is required", ErrInvalidPipeline)
	}
	return nil
}
