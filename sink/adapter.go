package sink

import (
	"context"
	"fmt"
	"strings"

	"metasync/internal/catalog"
)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error                                 // driver-specific config struct
	Publish(ctx context.Context, e catalog.Entity) error // upsert one entity
	Close() error                                        // idempotent
}

// FieldError is one rejected field reported by a sink.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WriteError reports a failed or partially failed write. Fields is set when
// the sink accepted the request but rejected some of its content.
type WriteError struct {
	Sink     string
	EntityID string
	Fields   []FieldError
	Err      error
}

func (e *WriteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sink %s: write %s", e.Sink, e.EntityID)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Field + ": " + f.Message
		}
		fmt.Fprintf(&b, " (rejected %s)", strings.Join(parts, "; "))
	}
	return b.String()
}

func (e *WriteError) Unwrap() error { return e.Err }

// Partial reports whether the sink applied the write with some fields rejected.
func (e *WriteError) Partial() bool { return e.Err == nil && len(e.Fields) > 0 }

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
