package kafka

import "fmt"

// Factory builds a Fetcher (e.g., SaramaFetcher, KgoFetcher, …).
type Factory func() Fetcher

var registry = map[string]Factory{}

// Register is called from each driver's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// NewFetcher returns a driver by name ("sarama", "kgo", …).
func NewFetcher(name string) (Fetcher, error) {
	if f, ok := registry[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("kafka: unsupported driver %q", name)
}
