package engine

import (
	"context"
	"fmt"

	"metasync/internal/logging"
	"metasync/internal/pipeline"
	"metasync/internal/telemetry"
	"metasync/internal/transport"
)

// Config is what the command line supplies. Ports from the pipeline file are
// used when these are zero.
type Config struct {
	PipelineYml string
	GRPCPort    int
	MetricsPort int
}

func Bootstrap(ctx context.Context, cfg Config) (e *Engine, err error) {
	// 1. pipeline
	p, err := pipeline.Compile(ctx, cfg.PipelineYml)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	e = &Engine{cfg: cfg, pipeline: p, status: map[string]bool{}}
	defer func() {
		if err != nil {
			_ = e.Close()
			e = nil
		}
	}()

	if l := p.Spec.Logging; l.Level != "" || l.JSON || l.Backend != "" {
		logging.Configure(logging.Options{Level: l.Level, JSON: l.JSON, Backend: l.Backend})
	}

	// 2. transport server
	if port := pick(cfg.GRPCPort, p.Spec.GRPCPort); port > 0 {
		if e.transport, err = transport.StartServer(port); err != nil {
			return e, fmt.Errorf("transport: %w", err)
		}
	}

	// 3. metrics / admin
	if port := pick(cfg.MetricsPort, p.Spec.MetricsPort); port > 0 {
		if e.admin, err = telemetry.NewServer(port, e.healthy, p.Search); err != nil {
			return e, fmt.Errorf("telemetry: %w", err)
		}
	}

	for _, s := range p.Sources {
		e.setServing(s.Spec.Name, true)
	}
	logging.L().Info("engine bootstrapped",
		"sources", len(p.Sources), "sinks", p.Publisher.Sinks(),
		"instance", p.Spec.Instance.ID, "instances", p.Spec.Instance.Count)
	return e, nil
}

func pick(flag, file int) int {
	if flag != 0 {
		return flag
	}
	return file
}
