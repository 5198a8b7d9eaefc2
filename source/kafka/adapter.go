package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"metasync/internal/offset"
)

// ErrTopicNotFound reports that the topic (or the requested partition of it)
// does not exist. Callers treat it as "nothing to fetch this cycle".
var ErrTopicNotFound = errors.New("kafka: topic not found")

// Message is one raw record. ID is the record's own position and is what the
// caller passes back as Request.From on the next fetch.
type Message struct {
	ID        offset.Offset
	Partition int32
	Payload   []byte
	Timestamp time.Time
}

// Request scopes one bounded fetch.
type Request struct {
	Topic     string
	Partition int32
	Limit     int

	// From is exclusive. The zero Offset means "from the beginning of the
	// retained history".
	From offset.Offset
}

// Iterator is a finite, lazily consumed batch. Callers must Close it.
type Iterator interface {
	Next(ctx context.Context) bool
	Message() Message
	Err() error
	Close() error
}

// Fetcher returns bounded, ordered batches of raw messages from one partition.
type Fetcher interface {
	Configure(Config) error
	Fetch(ctx context.Context, req Request) (Iterator, error)
	Close() error
}

// EncodeOffset renders a Kafka record offset as an opaque token.
func EncodeOffset(n int64) offset.Offset {
	return offset.Offset(strconv.FormatInt(n, 10))
}

// DecodeOffset parses a token produced by EncodeOffset.
func DecodeOffset(o offset.Offset) (int64, error) {
	n, err := strconv.ParseInt(string(o), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("kafka: malformed offset token %q", o)
	}
	return n, nil
}

// startAfter returns the first offset to read for req, or -1 for "oldest".
func startAfter(req Request) (int64, error) {
	if req.From.IsZero() {
		return -1, nil
	}
	n, err := DecodeOffset(req.From)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// SliceIterator iterates over an already materialised batch.
type SliceIterator struct {
	msgs []Message
	pos  int
	err  error
}

func NewSliceIterator(msgs []Message) *SliceIterator {
	return &SliceIterator{msgs: msgs, pos: -1}
}

func (it *SliceIterator) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.pos+1 >= len(it.msgs) {
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Message() Message { return it.msgs[it.pos] }
func (it *SliceIterator) Err() error       { return it.err }
func (it *SliceIterator) Close() error     { return nil }
