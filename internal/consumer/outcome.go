package consumer

import (
	"context"

	"metasync/source/kafka"
)

// Outcome is what happened to one message. Every outcome counts as processed
// for offset advancement.
type Outcome int

const (
	Published Outcome = iota // written to every sink
	Skipped                  // not a change we forward, or not translatable
	Failed                   // translated, but a sink write failed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Handler processes one message. It never fails the batch.
type Handler interface {
	Handle(ctx context.Context, m kafka.Message) Outcome
}

type HandlerFunc func(ctx context.Context, m kafka.Message) Outcome

func (f HandlerFunc) Handle(ctx context.Context, m kafka.Message) Outcome { return f(ctx, m) }
