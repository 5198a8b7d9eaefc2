package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"metasync/internal/catalog"
	"metasync/internal/telemetry"
	"metasync/sink"
)

type namedSink struct {
	name string
	a    sink.Adapter
}

// Publisher fans one entity out to every configured sink. Sinks are written
// in order; a failing sink does not stop the others.
type Publisher struct {
	sinks []namedSink

	closeOnce sync.Once
	closeErr  error
}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) AddSink(name string, a sink.Adapter) {
	p.sinks = append(p.sinks, namedSink{name: name, a: a})
}

// Sinks lists the sink names in publish order.
func (p *Publisher) Sinks() []string {
	out := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		out[i] = s.name
	}
	return out
}

// Publish writes e to every sink. Errors are combined; every error is a
// *sink.WriteError.
func (p *Publisher) Publish(ctx context.Context, e catalog.Entity) error {
	var errs error
	for _, s := range p.sinks {
		err := s.a.Publish(ctx, e)
		if err == nil {
			continue
		}
		var we *sink.WriteError
		if !errors.As(err, &we) {
			err = &sink.WriteError{Sink: s.name, EntityID: e.ExternalID, Err: err}
		}
		telemetry.SinkErrors.WithLabelValues(s.name).Inc()
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		for _, s := range p.sinks {
			p.closeErr = multierr.Append(p.closeErr, s.a.Close())
		}
	})
	return p.closeErr
}
