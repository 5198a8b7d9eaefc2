// Package navigator publishes catalog entities to a Navigator-style metadata
// catalog over its REST API.
package navigator

import (
	"context"
	"fmt"
	"net/http"

	"metasync/internal/catalog"
	"metasync/internal/throttle"
	"metasync/sink"

	"github.com/dogmatiq/linger"
)

type driver struct {
	cfg Config
	cl  *Client
	lim *throttle.Controller // nil when unlimited
}

// Configure accepts a Config. The config must already carry defaults.
func (d *driver) Configure(raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("navigator-sink: expected Config, got %T", raw)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.cfg = cfg
	d.cl = NewClient(cfg, &http.Client{})
	if cfg.MaxWritesPerSec > 0 {
		d.lim = throttle.PerSecond(cfg.MaxWritesPerSec)
	}
	return nil
}

func (d *driver) Publish(ctx context.Context, e catalog.Entity) error {
	if d.lim != nil {
		if err := d.lim.Acquire(ctx); err != nil {
			return &sink.WriteError{Sink: "navigator", EntityID: e.ExternalID, Err: err}
		}
	}
	ctx, cancel := linger.ContextWithTimeout(ctx, d.cfg.WriteTimeout, DefaultWriteTimeout)
	defer cancel()
	return d.cl.Write(ctx, e)
}

func (d *driver) Close() error {
	if d.lim != nil {
		d.lim.Close()
	}
	if d.cl != nil {
		d.cl.hc.CloseIdleConnections()
	}
	return nil
}

func init() { sink.Register("navigator", func() sink.Adapter { return &driver{} }) }
