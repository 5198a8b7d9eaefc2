package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"metasync/internal/logging"
	"metasync/internal/offset"
	"metasync/internal/partition"
	"metasync/internal/telemetry"
	"metasync/source/kafka"
)

// GroupConfig describes one source.
type GroupConfig struct {
	Source    string // name used in logs, metrics and health
	Namespace string
	Topic     string
	Sharded   bool
	Limit     int

	// Budget bounds one session across every owned partition.
	Budget time.Duration
}

type options struct {
	fetcher kafka.Fetcher
	store   offset.Store
	handler Handler
	now     func() time.Time
}

type Option func(*options)

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Group runs sessions over the partitions of one source that this instance
// owns. Ownership changes are queued with Rebalance and applied at the start
// of the next session, never during one.
type Group struct {
	cfg  GroupConfig
	opts options
	log  *slog.Logger

	run sync.Mutex // held for a whole session

	mu      sync.Mutex
	layout  partition.Layout
	pending *partition.Layout
	loops   []*Loop
	next    int // rotating start index
}

// NewGroup validates the layout and builds one Loop per owned partition.
// Unsharded sources always use a single-partition layout.
func NewGroup(cfg GroupConfig, layout partition.Layout, f kafka.Fetcher, s offset.Store, h Handler, opts ...Option) (*Group, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("consumer %s: limit should be > 0, got %d", cfg.Source, cfg.Limit)
	}
	if cfg.Budget <= 0 {
		return nil, fmt.Errorf("consumer %s: session budget should be > 0", cfg.Source)
	}
	g := &Group{
		cfg:  cfg,
		opts: options{fetcher: f, store: s, handler: h, now: time.Now},
		log:  logging.With("source", cfg.Source),
	}
	for _, o := range opts {
		o(&g.opts)
	}
	if err := g.apply(g.normalise(layout)); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) normalise(l partition.Layout) partition.Layout {
	if !g.cfg.Sharded {
		l.Partitions = 1
	}
	return l
}

// apply swaps the loop set. Callers hold g.mu or own g exclusively.
func (g *Group) apply(l partition.Layout) error {
	owned, err := partition.Assign(l)
	if err != nil {
		return fmt.Errorf("consumer %s: %w", g.cfg.Source, err)
	}
	prev := make([]int32, len(g.loops))
	for i, lp := range g.loops {
		prev[i] = lp.key.Partition
	}
	added, removed := partition.Diff(prev, owned)

	loops := make([]*Loop, len(owned))
	for i, p := range owned {
		key := offset.Key{Namespace: g.cfg.Namespace, Topic: g.cfg.Topic, Sharded: g.cfg.Sharded, Partition: p}
		loops[i] = newLoop(g.cfg.Source, key, g.cfg.Limit, &g.opts)
	}
	g.layout, g.loops, g.next = l, loops, 0

	g.log.Info("partitions assigned",
		"instance", l.InstanceID, "instances", l.InstanceCount,
		"owned", owned, "added", added, "removed", removed)
	return nil
}

// Rebalance queues a new layout. It is validated now and applied before the
// next session.
func (g *Group) Rebalance(l partition.Layout) error {
	l = g.normalise(l)
	if err := l.Validate(); err != nil {
		return fmt.Errorf("consumer %s: %w", g.cfg.Source, err)
	}
	g.mu.Lock()
	g.pending = &l
	g.mu.Unlock()
	return nil
}

// Owned returns the partitions currently consumed.
func (g *Group) Owned() []int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int32, len(g.loops))
	for i, lp := range g.loops {
		out[i] = lp.key.Partition
	}
	return out
}

// Name is the source name.
func (g *Group) Name() string { return g.cfg.Source }

// Session runs one session over every owned partition, starting from a
// different partition each time. A partition whose session aborts does not
// stop the others; the errors are combined.
func (g *Group) Session(ctx context.Context) error {
	g.run.Lock()
	defer g.run.Unlock()

	loops, err := g.begin()
	if err != nil {
		return err
	}

	start := g.opts.now()
	deadline := start.Add(g.cfg.Budget)
	defer func() {
		telemetry.SessionSeconds.WithLabelValues(g.cfg.Source).Observe(g.opts.now().Sub(start).Seconds())
	}()

	var errs error
	for i, lp := range loops {
		if i > 0 && !g.opts.now().Before(deadline) {
			g.log.Debug("session deadline reached", "skipped_partitions", len(loops)-i)
			break
		}
		st, err := lp.Run(ctx, deadline)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if st.Messages > 0 {
			g.log.Debug("partition session done",
				"partition", lp.key.Partition, "reason", st.Reason.String(),
				"batches", st.Batches, "messages", st.Messages, "offset", st.Committed.String())
		}
		if st.Reason == Cancelled {
			break
		}
	}
	return errs
}

// begin applies any pending layout and returns the loops in this session's
// order.
func (g *Group) begin() ([]*Loop, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		l := *g.pending
		g.pending = nil
		if err := g.apply(l); err != nil {
			return nil, err
		}
	}
	if len(g.loops) == 0 {
		return nil, nil
	}
	n := len(g.loops)
	order := make([]*Loop, 0, n)
	for i := 0; i < n; i++ {
		order = append(order, g.loops[(g.next+i)%n])
	}
	g.next = (g.next + 1) % n
	return order, nil
}
