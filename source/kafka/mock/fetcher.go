// Package mockkafka provides an in-memory kafka.Fetcher for tests.
package mockkafka

import (
	"context"
	"fmt"
	"sync"

	"metasync/internal/offset"
	"metasync/source/kafka"
)

var _ kafka.Fetcher = (*Fetcher)(nil)

type partitionKey struct {
	topic     string
	partition int32
}

// Fetcher serves messages appended with Append or AppendIDs. Ordering within
// a partition is append order; IDs are opaque.
type Fetcher struct {
	mu sync.Mutex

	queues   map[partitionKey][]kafka.Message
	requests []kafka.Request

	fetchErr func(req kafka.Request, call int) error
	iterErr  func(req kafka.Request, call int) (after int, err error)

	configured bool
	closed     bool
}

func NewFetcher() *Fetcher {
	return &Fetcher{queues: map[partitionKey][]kafka.Message{}}
}

func (f *Fetcher) Configure(kafka.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = true
	return nil
}

// Append adds payloads with sequential numeric IDs continuing the partition.
func (f *Fetcher) Append(topic string, partition int32, payloads ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := partitionKey{topic, partition}
	for _, p := range payloads {
		id := kafka.EncodeOffset(int64(len(f.queues[k])))
		f.queues[k] = append(f.queues[k], kafka.Message{ID: id, Partition: partition, Payload: p})
	}
}

// AppendIDs adds one message per id, each with the same payload.
func (f *Fetcher) AppendIDs(topic string, partition int32, payload []byte, ids ...offset.Offset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := partitionKey{topic, partition}
	for _, id := range ids {
		f.queues[k] = append(f.queues[k], kafka.Message{ID: id, Partition: partition, Payload: payload})
	}
}

// FailFetch makes Fetch return the error fn produces (nil = succeed). call is
// 1-based across all partitions.
func (f *Fetcher) FailFetch(fn func(req kafka.Request, call int) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = fn
}

// FailIteration makes the returned iterator stop with err after yielding
// `after` messages, when fn returns a non-nil error.
func (f *Fetcher) FailIteration(fn func(req kafka.Request, call int) (after int, err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iterErr = fn
}

// Requests returns every Fetch request received so far.
func (f *Fetcher) Requests() []kafka.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Request(nil), f.requests...)
}

func (f *Fetcher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fetcher) Fetch(ctx context.Context, req kafka.Request) (kafka.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	call := len(f.requests)
	if f.fetchErr != nil {
		if err := f.fetchErr(req, call); err != nil {
			return nil, err
		}
	}

	q, ok := f.queues[partitionKey{req.Topic, req.Partition}]
	if !ok {
		return nil, fmt.Errorf("%w: %s[%d]", kafka.ErrTopicNotFound, req.Topic, req.Partition)
	}

	start := 0
	if !req.From.IsZero() {
		start = -1
		for i, m := range q {
			if m.ID == req.From {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("mockkafka: unknown offset %q", req.From)
		}
	}
	end := start + req.Limit
	if end > len(q) {
		end = len(q)
	}
	batch := append([]kafka.Message(nil), q[start:end]...)

	it := &iterator{msgs: batch, pos: -1, failAt: -1}
	if f.iterErr != nil {
		if after, err := f.iterErr(req, call); err != nil {
			it.failAt, it.failErr = after, err
		}
	}
	return it, nil
}

func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type iterator struct {
	msgs    []kafka.Message
	pos     int
	failAt  int
	failErr error
	err     error
}

func (it *iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.failAt >= 0 && it.pos+1 == it.failAt {
		it.err = it.failErr
		return false
	}
	if it.pos+1 >= len(it.msgs) {
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Message() kafka.Message { return it.msgs[it.pos] }
func (it *iterator) Err() error             { return it.err }
func (it *iterator) Close() error           { return nil }
