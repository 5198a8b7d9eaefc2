package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metasync/internal/logging"

	"github.com/IBM/sarama"
)

func init() { Register("sarama", func() Fetcher { return &SaramaFetcher{} }) }

// SaramaFetcher reads partitions directly (no consumer group); progress is
// tracked by the caller's offset store, not by Kafka.
type SaramaFetcher struct {
	cfg  Config
	cl   sarama.Client
	cons sarama.Consumer
}

func (d *SaramaFetcher) Configure(config Config) error {
	d.cfg = config

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = config.ClientID
	sc.Consumer.Return.Errors = true
	sc.Consumer.MaxWaitTime = config.FetchWait
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.cons, err = sarama.NewConsumerFromClient(d.cl)
	return err
}

func (d *SaramaFetcher) Fetch(ctx context.Context, req Request) (Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.checkPartition(req.Topic, req.Partition); err != nil {
		return nil, err
	}

	start, err := startAfter(req)
	if err != nil {
		return nil, err
	}
	oldest, err := d.cl.GetOffset(req.Topic, req.Partition, sarama.OffsetOldest)
	if err != nil {
		return nil, d.wrap(req, err)
	}
	if start < oldest {
		if start >= 0 {
			logging.L().Warn("sarama-fetcher: stored offset fell out of retention; resuming from oldest",
				"topic", req.Topic, "partition", req.Partition, "want", start, "oldest", oldest)
		}
		start = oldest
	}
	// high watermark: offset of the next message to be produced
	hwm, err := d.cl.GetOffset(req.Topic, req.Partition, sarama.OffsetNewest)
	if err != nil {
		return nil, d.wrap(req, err)
	}
	if start >= hwm {
		return NewSliceIterator(nil), nil
	}

	pc, err := d.cons.ConsumePartition(req.Topic, req.Partition, start)
	if err != nil {
		return nil, d.wrap(req, err)
	}

	remaining := hwm - start
	if int64(req.Limit) < remaining {
		remaining = int64(req.Limit)
	}
	return &saramaIterator{pc: pc, remaining: remaining, wait: d.cfg.FetchWait}, nil
}

func (d *SaramaFetcher) checkPartition(topic string, partition int32) error {
	parts, err := d.cl.Partitions(topic)
	if err != nil {
		if errors.Is(err, sarama.ErrUnknownTopicOrPartition) {
			return fmt.Errorf("%w: %s", ErrTopicNotFound, topic)
		}
		return fmt.Errorf("sarama-fetcher: partitions for %s: %w", topic, err)
	}
	for _, p := range parts {
		if p == partition {
			return nil
		}
	}
	return fmt.Errorf("%w: %s[%d]", ErrTopicNotFound, topic, partition)
}

func (d *SaramaFetcher) wrap(req Request, err error) error {
	if errors.Is(err, sarama.ErrUnknownTopicOrPartition) {
		return fmt.Errorf("%w: %s[%d]", ErrTopicNotFound, req.Topic, req.Partition)
	}
	return fmt.Errorf("sarama-fetcher: %s[%d]: %w", req.Topic, req.Partition, err)
}

func (d *SaramaFetcher) Close() error {
	var err error
	if d.cons != nil {
		err = d.cons.Close()
	}
	if d.cl != nil && !d.cl.Closed() {
		if cerr := d.cl.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// saramaIterator yields at most remaining messages. A quiet partition ends the
// batch after wait rather than blocking the session.
type saramaIterator struct {
	pc        sarama.PartitionConsumer
	remaining int64
	wait      time.Duration

	cur Message
	err error
}

func (it *saramaIterator) Next(ctx context.Context) bool {
	if it.remaining <= 0 || it.err != nil {
		return false
	}
	timer := time.NewTimer(it.wait)
	defer timer.Stop()

	select {
	case msg, ok := <-it.pc.Messages():
		if !ok {
			return false
		}
		it.remaining--
		it.cur = Message{
			ID:        EncodeOffset(msg.Offset),
			Partition: msg.Partition,
			Payload:   msg.Value,
			Timestamp: msg.Timestamp,
		}
		return true
	case cerr, ok := <-it.pc.Errors():
		if ok && cerr != nil {
			it.err = cerr.Err
		}
		return false
	case <-timer.C:
		return false
	case <-ctx.Done():
		it.err = ctx.Err()
		return false
	}
}

func (it *saramaIterator) Message() Message { return it.cur }
func (it *saramaIterator) Err() error       { return it.err }

func (it *saramaIterator) Close() error {
	return it.pc.Close()
}
