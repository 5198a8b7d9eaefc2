package config

import (
	"metasync/internal/spec"
	"metasync/sink/kafka"
	"metasync/sink/navigator"
	kcfg "metasync/source/kafka"
)

// LoadKafkaConfig delegates to the Kafka source loader while centralizing
// loader entrypoints under internal/config.
func LoadKafkaConfig(src spec.SourceSpec) (kcfg.Config, error) {
	c, err := kcfg.LoadConfig(src.Config, src.Sharded())
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// LoadNavigatorConfig loads and validates the catalog sink config.
func LoadNavigatorConfig(path string) (navigator.Config, error) {
	c, err := navigator.LoadConfig(path)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// LoadMirrorConfig loads and validates the Kafka mirror sink config.
func LoadMirrorConfig(path string) (kafka.Config, error) {
	c, err := kafka.LoadConfig(path)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}
