package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"metasync/internal/logging"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

func init() { Register("kgo", func() Fetcher { return &KgoFetcher{} }) }

type partitionKey struct {
	topic     string
	partition int32
}

// kgoPartition is a client pinned to a single partition. next is the offset
// the client will return next, or -1 when unknown.
type kgoPartition struct {
	cl   *kgo.Client
	next int64
}

// KgoFetcher keeps one direct-consuming franz-go client per partition so
// that consecutive fetches continue from the buffered position.
type KgoFetcher struct {
	cfg  Config
	opts []kgo.Opt

	mu    sync.Mutex
	parts map[partitionKey]*kgoPartition
}

func (d *KgoFetcher) Configure(config Config) error {
	d.cfg = config
	d.parts = map[partitionKey]*kgoPartition{}
	d.opts = []kgo.Opt{
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(config.ClientID),
		kgo.FetchMaxWait(config.FetchWait),
		kgo.WithLogger(kgoLogger{}),
	}
	if config.TLSEn {
		d.opts = append(d.opts, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	if config.SASLUser != "" {
		d.opts = append(d.opts, kgo.SASL(plain.Auth{User: config.SASLUser, Pass: config.SASLPass}.AsMechanism()))
	}

	// validate options up front; partition clients are created lazily
	cl, err := kgo.NewClient(d.opts...)
	if err != nil {
		return fmt.Errorf("kgo-fetcher: create client: %w", err)
	}
	cl.Close()
	return nil
}

func (d *KgoFetcher) Fetch(ctx context.Context, req Request) (Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, err := startAfter(req)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := partitionKey{req.Topic, req.Partition}
	p, err := d.partition(ctx, key, start)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, d.cfg.FetchWait)
	defer cancel()

	fetches := p.cl.PollRecords(pctx, req.Limit)
	for _, fe := range fetches.Errors() {
		switch {
		case errors.Is(fe.Err, context.DeadlineExceeded), errors.Is(fe.Err, context.Canceled):
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		case errors.Is(fe.Err, kerr.UnknownTopicOrPartition):
			d.drop(key)
			return nil, fmt.Errorf("%w: %s[%d]", ErrTopicNotFound, fe.Topic, fe.Partition)
		default:
			d.drop(key)
			return nil, fmt.Errorf("kgo-fetcher: %s[%d]: %w", fe.Topic, fe.Partition, fe.Err)
		}
	}

	var msgs []Message
	fetches.EachRecord(func(r *kgo.Record) {
		if r.Topic != req.Topic || r.Partition != req.Partition || len(msgs) >= req.Limit {
			return
		}
		msgs = append(msgs, Message{
			ID:        EncodeOffset(r.Offset),
			Partition: r.Partition,
			Payload:   r.Value,
			Timestamp: r.Timestamp,
		})
		p.next = r.Offset + 1
	})
	if len(msgs) == req.Limit {
		// records past the limit stay buffered in the client and would be
		// returned out of step with the caller's offset
		p.next = -1
	}
	return NewSliceIterator(msgs), nil
}

// partition returns a client positioned at start, creating or repositioning
// one as needed. Callers hold d.mu.
func (d *KgoFetcher) partition(ctx context.Context, key partitionKey, start int64) (*kgoPartition, error) {
	p, ok := d.parts[key]
	if ok && p.next >= 0 && p.next == start {
		return p, nil
	}
	if ok && start >= 0 {
		p.cl.SetOffsets(map[string]map[int32]kgo.EpochOffset{
			key.topic: {key.partition: {Epoch: -1, Offset: start}},
		})
		p.next = start
		return p, nil
	}
	if ok {
		d.drop(key)
	}

	at := kgo.NewOffset().AtStart()
	if start >= 0 {
		at = kgo.NewOffset().At(start)
	}
	opts := append(append([]kgo.Opt{}, d.opts...), kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
		key.topic: {key.partition: at},
	}))
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kgo-fetcher: create client: %w", err)
	}
	if err := topicExists(ctx, cl, key); err != nil {
		cl.Close()
		return nil, err
	}

	p = &kgoPartition{cl: cl, next: start}
	d.parts[key] = p
	return p, nil
}

// topicExists issues a metadata request so that a missing topic is reported
// as ErrTopicNotFound instead of an empty poll.
func topicExists(ctx context.Context, cl *kgo.Client, key partitionKey) error {
	req := kmsg.NewPtrMetadataRequest()
	t := kmsg.NewMetadataRequestTopic()
	t.Topic = kmsg.StringPtr(key.topic)
	req.Topics = append(req.Topics, t)

	resp, err := req.RequestWith(ctx, cl)
	if err != nil {
		return fmt.Errorf("kgo-fetcher: metadata %s: %w", key.topic, err)
	}
	for _, rt := range resp.Topics {
		if rt.Topic == nil || *rt.Topic != key.topic {
			continue
		}
		if err := kerr.ErrorForCode(rt.ErrorCode); err != nil {
			if errors.Is(err, kerr.UnknownTopicOrPartition) {
				return fmt.Errorf("%w: %s", ErrTopicNotFound, key.topic)
			}
			return fmt.Errorf("kgo-fetcher: metadata %s: %w", key.topic, err)
		}
		for _, rp := range rt.Partitions {
			if rp.Partition == key.partition {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s[%d]", ErrTopicNotFound, key.topic, key.partition)
}

func (d *KgoFetcher) drop(key partitionKey) {
	if p, ok := d.parts[key]; ok {
		p.cl.Close()
		delete(d.parts, key)
	}
}

func (d *KgoFetcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.parts {
		d.drop(key)
	}
	return nil
}

// kgoLogger routes franz-go client logs into the process logger.
type kgoLogger struct{}

func (kgoLogger) Level() kgo.LogLevel { return kgo.LogLevelWarn }

func (kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	l := logging.L().With("client", "kgo")
	switch level {
	case kgo.LogLevelError:
		l.Error(msg, keyvals...)
	case kgo.LogLevelWarn:
		l.Warn(msg, keyvals...)
	case kgo.LogLevelInfo:
		l.Info(msg, keyvals...)
	default:
		l.Debug(msg, keyvals...)
	}
}
