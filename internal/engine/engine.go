package engine

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"metasync/internal/config"
	"metasync/internal/consumer"
	"metasync/internal/logging"
	"metasync/internal/pipeline"
	"metasync/internal/telemetry"
	"metasync/internal/transport"
)

const shutdownTimeout = 5 * time.Second

type Engine struct {
	cfg       Config
	pipeline  *pipeline.Pipeline
	transport *transport.Server
	admin     *telemetry.Server

	mu     sync.Mutex
	status map[string]bool // source -> last session succeeded

	closeOnce sync.Once
	closeErr  error
}

// Run starts one scheduler per source plus the servers and blocks until ctx
// is done or a server fails. SIGHUP reloads the instance layout.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range e.pipeline.Sources {
		sch := &consumer.Scheduler{
			Name:     s.Spec.Name,
			Interval: e.pipeline.Spec.Schedule.Interval,
			Session:  s.Group.Session,
			OnSession: func(_ string, err error) {
				e.setServing(s.Spec.Name, err == nil)
			},
		}
		g.Go(func() error { return sch.Run(ctx) })
	}

	if e.transport != nil {
		g.Go(e.transport.Serve)
	}
	if e.admin != nil {
		g.Go(e.admin.Serve)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				e.stopServers()
				return nil
			case <-hup:
				if err := e.Reload(); err != nil {
					logging.L().Error("reload rejected", "err", err)
				}
			}
		}
	})

	err := g.Wait()
	return multierr.Append(err, e.Close())
}

// Reload re-reads the pipeline file and queues its instance layout. Only the
// instance block is hot-reloadable.
func (e *Engine) Reload() error {
	f, err := config.LoadPipelineSpec(e.cfg.PipelineYml)
	if err != nil {
		return err
	}
	if f.Instance == e.pipeline.Spec.Instance {
		return nil
	}
	if err := e.pipeline.Rebalance(f.Instance); err != nil {
		return err
	}
	logging.L().Info("instance layout queued", "instance", f.Instance.ID, "instances", f.Instance.Count)
	return nil
}

func (e *Engine) setServing(source string, ok bool) {
	e.mu.Lock()
	prev, seen := e.status[source]
	e.status[source] = ok
	e.mu.Unlock()

	if e.transport != nil && (!seen || prev != ok) {
		e.transport.SetServing(source, ok)
	}
}

// healthy is true while every source's last session succeeded.
func (e *Engine) healthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ok := range e.status {
		if !ok {
			return false
		}
	}
	return true
}

func (e *Engine) stopServers() {
	if e.transport != nil {
		e.transport.Stop()
	}
	if e.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = e.admin.Shutdown(ctx)
	}
}

// Close stops the servers and releases the pipeline. It is safe to call
// after Run.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.stopServers()
		e.closeErr = e.pipeline.Close()
	})
	return e.closeErr
}
