// Package spec describes the pipeline file.
package spec

import "time"

// Source kinds.
const (
	KindAudit    = "audit"    // one logical stream, partition 0
	KindMetadata = "metadata" // sharded across instances
)

type Instance struct {
	ID    int32 `yaml:"id"`
	Count int32 `yaml:"count"`
}

type Schedule struct {
	Interval     time.Duration `yaml:"interval"`
	TxTimeout    time.Duration `yaml:"tx_timeout"`
	SafetyMargin time.Duration `yaml:"safety_margin"`
}

// SessionBudget is how long one consumer session may run.
func (s Schedule) SessionBudget() time.Duration { return s.TxTimeout - s.SafetyMargin }

type Offsets struct {
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`
}

type SourceSpec struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`   // audit | metadata
	Driver string `yaml:"driver"` // sarama | kgo
	Config string `yaml:"config"`
}

// Sharded reports whether the source's partitions are split across instances.
func (s SourceSpec) Sharded() bool { return s.Kind == KindMetadata }

type sinkConfigs struct {
	Navigator string `yaml:"navigator"`
	Kafka     string `yaml:"kafka"`
}

type debugSection struct {
	PerFrameDelayMS int  `yaml:"per_frame_delay_ms"`
	PrintCounter    bool `yaml:"print_counter"`
}

type loggingSection struct {
	Level   string `yaml:"level"`
	JSON    bool   `yaml:"json"`
	Backend string `yaml:"backend"` // slog | zap
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Instance Instance     `yaml:"instance"`
	Schedule Schedule     `yaml:"schedule"`
	Offsets  Offsets      `yaml:"offsets"`
	Sources  []SourceSpec `yaml:"sources"`

	Sinks       []string       `yaml:"sinks"`
	SinkConfigs sinkConfigs    `yaml:"sink_configs"`
	Debug       debugSection   `yaml:"debug"`
	Logging     loggingSection `yaml:"logging"`

	GRPCPort    int `yaml:"grpc_port"`    // 0 disables the control server
	MetricsPort int `yaml:"metrics_port"` // 0 disables the admin HTTP server
}
