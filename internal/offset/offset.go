// Package offset persists consumption progress per logical consumer.
//
// Offsets are opaque tokens issued by the transport. A Store only records the
// most recent token written for each Key; ordering is the writer's concern.
package offset

import (
	"context"
	"strconv"
)

// Offset is an opaque position token. The zero value means "no position".
type Offset string

func (o Offset) IsZero() bool { return o == "" }

func (o Offset) String() string { return string(o) }

// Key identifies one offset-tracking slot.
type Key struct {
	Namespace string
	Topic     string
	Sharded   bool
	Partition int32
}

// String renders the storage key, "<namespace>.<topic>.offset" for a single
// logical stream or "<namespace>.<topic>.<partition>.offset" when sharded.
func (k Key) String() string {
	if !k.Sharded {
		return k.Namespace + "." + k.Topic + ".offset"
	}
	return k.Namespace + "." + k.Topic + "." + strconv.FormatInt(int64(k.Partition), 10) + ".offset"
}

// Store is durable key/value persistence of the last processed offset.
type Store interface {
	// Read returns the offset last written for k. ok is false when nothing has
	// been written yet.
	Read(ctx context.Context, k string) (o Offset, ok bool, err error)

	// Write records o as the offset for k. A Write that returns nil is visible
	// to every later Read, including after a restart.
	Write(ctx context.Context, k string, o Offset) error

	// Delete removes any offset recorded for k.
	Delete(ctx context.Context, k string) error

	// Keys lists every key that currently has an offset, in lexical order.
	Keys(ctx context.Context) ([]string, error)

	Close() error
}
