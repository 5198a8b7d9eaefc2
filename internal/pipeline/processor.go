package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"go.uber.org/multierr"

	"metasync/internal/catalog"
	"metasync/internal/change"
	"metasync/internal/consumer"
	"metasync/internal/logging"
	"metasync/sink"
	"metasync/source/kafka"
)

// EntityPublisher is the write side of a Publisher.
type EntityPublisher interface {
	Publish(ctx context.Context, e catalog.Entity) error
}

// Processor turns one raw audit message into a catalog write. Problems with
// a single message are logged and reported as an Outcome; they never stop
// the batch.
type Processor struct {
	translator catalog.Translator
	pub        EntityPublisher
	log        *slog.Logger
}

var _ consumer.Handler = (*Processor)(nil)

func NewProcessor(source string, t catalog.Translator, pub EntityPublisher) *Processor {
	return &Processor{translator: t, pub: pub, log: logging.With("source", source)}
}

func (p *Processor) Handle(ctx context.Context, m kafka.Message) consumer.Outcome {
	ev, err := change.Decode(m.Payload)
	switch {
	case errors.Is(err, change.ErrNotMetadataChange):
		p.log.Debug("skipping audit message", "offset", m.ID.String(), "type", ev.Type)
		return consumer.Skipped
	case err != nil:
		p.log.Warn("skipping malformed message", "offset", m.ID.String(), "partition", m.Partition, "err", err)
		return consumer.Skipped
	}

	e, err := p.translator.Translate(ev)
	if err != nil {
		var uk *catalog.UnsupportedKindError
		if errors.As(err, &uk) {
			p.log.Warn("unsupported entity kind", "offset", m.ID.String(), "kind", string(uk.Kind))
		} else {
			p.log.Warn("translation failed", "offset", m.ID.String(), "err", err)
		}
		return consumer.Skipped
	}
	if e.Empty() {
		p.log.Debug("skipping change without tags or properties", "offset", m.ID.String(), "entity", e.Name)
		return consumer.Skipped
	}

	if err := p.pub.Publish(ctx, e); err != nil {
		for _, one := range multierr.Errors(err) {
			attrs := []any{"offset", m.ID.String(), "entity", e.Name, "id", e.ExternalID, "err", one}
			var we *sink.WriteError
			if errors.As(one, &we) && we.Partial() {
				attrs = append(attrs, "partial", true, "rejected", len(we.Fields))
			}
			p.log.Warn("sink write failed", attrs...)
		}
		return consumer.Failed
	}
	return consumer.Published
}
