package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultNamespace       = "system"
	DefaultAuditTopic      = "audit"
	DefaultMetadataTopic   = "cdap-metadata-updates"
	DefaultAuditBucket     = "auditOffset"
	DefaultMetadataBucket  = "kafkaOffset"
	DefaultLimit           = 100
	DefaultPartitions      = 10
	DefaultFetchWait       = 500 * time.Millisecond
	DefaultVersion         = "2.8.0"
	EnvPrefix              = "METASYNC_KAFKA__"
	supportedSchemaVersion = "v1"
)

var ErrInvalidConfig = errors.New("kafka: invalid config")

type Config struct {
	Brokers      []string      `koanf:"brokers"`
	Zookeeper    string        `koanf:"zookeeper"`
	Namespace    string        `koanf:"namespace"`
	Topic        string        `koanf:"topic"`
	Limit        int           `koanf:"limit"`
	Partitions   int32         `koanf:"partitions"`
	OffsetBucket string        `koanf:"offset_bucket"`
	Version      string        `koanf:"version"`
	ClientID     string        `koanf:"client_id"`
	FetchWait    time.Duration `koanf:"fetch_wait"` // max wait for a batch to fill
	TLSEn        bool          `koanf:"tls_enabled"`
	SASLUser     string        `koanf:"sasl_user"`
	SASLPass     string        `koanf:"sasl_pass"`

	// Sharded is set by the pipeline, not the file: audit sources read one
	// logical stream, metadata sources are split across instances.
	Sharded bool `koanf:"-"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// LoadConfig merges YAML (if present) with env-vars
// (prefix `METASYNC_KAFKA__`, nesting delimiter `__`).
func LoadConfig(path string, sharded bool) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	// schema version check (only when YAML is present)
	sv := k.String("schema_version")
	if sv != "" && sv != supportedSchemaVersion {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want %s)", sv, supportedSchemaVersion)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey(EnvPrefix)), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	cfg.Sharded = sharded
	applyDefaults(&cfg)
	return cfg, nil
}

// envKey maps METASYNC_KAFKA__FETCH_WAIT to fetch_wait and A__B to a.b.
func envKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.ReplaceAll(s, "__", ".")
	}
}

// ---------------------------------------------------------------------------
// defaults & validation
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Topic == "" {
		c.Topic = DefaultAuditTopic
		if c.Sharded {
			c.Topic = DefaultMetadataTopic
		}
	}
	if c.OffsetBucket == "" {
		c.OffsetBucket = DefaultAuditBucket
		if c.Sharded {
			c.OffsetBucket = DefaultMetadataBucket
		}
	}
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.Partitions == 0 {
		c.Partitions = DefaultPartitions
		if !c.Sharded {
			c.Partitions = 1
		}
	}
	if c.FetchWait == 0 {
		c.FetchWait = DefaultFetchWait
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.ClientID == "" {
		c.ClientID = "metasync"
	}
}

// Validate rejects configs the consumer must refuse to start with.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		if c.Zookeeper != "" {
			return fmt.Errorf("%w: zookeeper discovery is not supported, set brokers", ErrInvalidConfig)
		}
		return fmt.Errorf("%w: brokers must be provided", ErrInvalidConfig)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: topic must be provided", ErrInvalidConfig)
	}
	if c.Partitions <= 0 {
		return fmt.Errorf("%w: partitions should be > 0, got %d", ErrInvalidConfig, c.Partitions)
	}
	if !c.Sharded && c.Partitions != 1 {
		return fmt.Errorf("%w: topic %s is read unsharded and must have 1 partition, got %d",
			ErrInvalidConfig, c.Topic, c.Partitions)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit should be > 0, got %d", ErrInvalidConfig, c.Limit)
	}
	return nil
}
