// Package consumer runs bounded fetch, process and commit sessions over the
// partitions a process owns.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"metasync/internal/logging"
	"metasync/internal/offset"
	"metasync/internal/telemetry"
	"metasync/source/kafka"
)

// StopReason says why a session ended without error.
type StopReason int

const (
	Drained       StopReason = iota // a fetch came back empty
	TopicNotFound                   // nothing to read this cycle
	DeadlineHit                     // more may remain, picked up next tick
	Cancelled                       // ctx ended between batches
)

func (r StopReason) String() string {
	switch r {
	case Drained:
		return "drained"
	case TopicNotFound:
		return "topic_not_found"
	case DeadlineHit:
		return "deadline"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Stats describes one finished session for one key.
type Stats struct {
	Batches   int
	Messages  int
	Outcomes  [3]int // indexed by Outcome
	Committed offset.Offset
	Reason    StopReason
}

// Loop drives one consumer key: one topic partition, or the single logical
// stream of an unsharded source.
type Loop struct {
	source  string
	key     offset.Key
	limit   int
	fetcher kafka.Fetcher
	store   offset.Store
	handler Handler
	now     func() time.Time
	log     *slog.Logger
}

func newLoop(source string, key offset.Key, limit int, o *options) *Loop {
	return &Loop{
		source:  source,
		key:     key,
		limit:   limit,
		fetcher: o.fetcher,
		store:   o.store,
		handler: o.handler,
		now:     o.now,
		log:     logging.With("source", source, "key", key.String()),
	}
}

func (l *Loop) Key() offset.Key { return l.key }

// Run executes one session that stops once deadline has passed. It resumes
// strictly after the last committed offset and commits after every non-empty
// batch.
func (l *Loop) Run(ctx context.Context, deadline time.Time) (Stats, error) {
	var st Stats
	key := l.key.String()

	from, _, err := l.store.Read(ctx, key)
	if err != nil {
		return st, l.abort(PhaseRead, err)
	}
	st.Committed = from

	for {
		if ctx.Err() != nil {
			st.Reason = Cancelled
			return st, nil
		}

		last, n, err := l.batch(ctx, from, &st)
		switch {
		case errors.Is(err, kafka.ErrTopicNotFound):
			l.log.Warn("topic not found, nothing to consume", "topic", l.key.Topic, "partition", l.key.Partition)
			st.Reason = TopicNotFound
			return st, nil
		case err != nil:
			return st, l.abort(PhaseFetch, err)
		case n == 0:
			st.Reason = Drained
			return st, nil
		}

		if err := l.store.Write(ctx, key, last); err != nil {
			return st, l.abort(PhaseCommit, err)
		}
		telemetry.Commits.WithLabelValues(l.source).Inc()
		l.log.Debug("offset committed", "offset", last.String(), "messages", n)

		st.Batches++
		st.Committed = last
		from = last

		if !l.now().Before(deadline) {
			st.Reason = DeadlineHit
			return st, nil
		}
	}
}

// batch fetches and processes one batch. last is the id of the final message
// handled; n is how many were handled.
func (l *Loop) batch(ctx context.Context, from offset.Offset, st *Stats) (last offset.Offset, n int, err error) {
	it, err := l.fetcher.Fetch(ctx, kafka.Request{
		Topic:     l.key.Topic,
		Partition: l.key.Partition,
		Limit:     l.limit,
		From:      from,
	})
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if cerr := it.Close(); cerr != nil {
			l.log.Warn("closing batch", "err", cerr)
		}
	}()

	for it.Next(ctx) {
		m := it.Message()
		out := l.handler.Handle(ctx, m)
		st.Outcomes[out]++
		st.Messages++
		telemetry.Messages.WithLabelValues(l.source, out.String()).Inc()
		last = m.ID
		n++
	}
	if err := it.Err(); err != nil {
		return "", 0, err
	}
	if n > 0 {
		telemetry.Batches.WithLabelValues(l.source).Inc()
	}
	return last, n, nil
}

func (l *Loop) abort(phase string, err error) error {
	telemetry.SessionErrors.WithLabelValues(l.source, phase).Inc()
	return &SessionError{Key: l.key.String(), Phase: phase, Err: err}
}
