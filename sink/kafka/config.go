package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EncodingJSON     = "json"
	EncodingProtobuf = "protobuf"
	EnvPrefix        = "METASYNC_MIRROR__"
)

var ErrInvalidConfig = errors.New("mirror: invalid config")

type Config struct {
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	Acks     int16    `koanf:"required_acks"` // 1 or -1 (default); 0 reads as unset
	Encoding string   `koanf:"encoding"`      // json | protobuf
	ClientID string   `koanf:"client_id"`
}

// LoadConfig merges YAML (if present) with env-vars (prefix `METASYNC_MIRROR__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Encoding == "" {
		c.Encoding = EncodingJSON
	}
	if c.Acks == 0 {
		c.Acks = -1
	}
	if c.ClientID == "" {
		c.ClientID = "metasync-mirror"
	}
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: brokers must be provided", ErrInvalidConfig)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: topic must be provided", ErrInvalidConfig)
	}
	switch c.Encoding {
	case EncodingJSON, EncodingProtobuf:
	default:
		return fmt.Errorf("%w: unknown encoding %q", ErrInvalidConfig, c.Encoding)
	}
	if c.Acks != -1 && c.Acks != 1 {
		return fmt.Errorf("%w: required_acks must be -1 or 1", ErrInvalidConfig)
	}
	return nil
}
