package consumer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"metasync/internal/logging"
)

// Session is one bounded unit of work, normally Group.Session.
type Session func(ctx context.Context) error

// Scheduler triggers a Session on a fixed interval. Runs never overlap; ticks
// missed while a session is running collapse into one.
type Scheduler struct {
	Name     string
	Interval time.Duration
	Session  Session

	// OnSession, if set, observes every finished session.
	OnSession func(id string, err error)
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		s.once(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (s *Scheduler) once(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	id := uuid.NewString()
	err := s.Session(ctx)
	if err != nil {
		logging.L().Error("session aborted", "source", s.Name, "session", id, "err", err)
	}
	if s.OnSession != nil {
		s.OnSession(id, err)
	}
}
