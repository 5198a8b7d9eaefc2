// metasync/sink/stdout/driver.go
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"metasync/internal/catalog"
	"metasync/sink"

	"github.com/dogmatiq/linger"
)

/* ────────── public config ────────── */
type Config struct {
	DelayMS      int       `yaml:"delay_ms"`      // artificial per-entity delay
	PrintCounter bool      `yaml:"print_counter"` // prepend seq#
	Out          io.Writer `yaml:"-"`             // defaults to os.Stdout
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config

	mu  sync.Mutex // serialises writes to cfg.Out
	seq atomic.Uint64
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) Publish(ctx context.Context, e catalog.Entity) error {
	if d.cfg.DelayMS > 0 {
		if err := linger.Sleep(ctx, time.Duration(d.cfg.DelayMS)*time.Millisecond); err != nil {
			return err
		}
	}

	line := fmt.Sprintf("%s %s/%s +tags[%s] -tags[%s] +props[%d] -props[%s]",
		e.Name, e.SourceType, e.EntityType,
		strings.Join(e.TagsToAdd, ","), strings.Join(e.TagsToRemove, ","),
		len(e.PropsToAdd), strings.Join(e.PropsToRemove, ","))

	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.cfg.PrintCounter {
		_, err = fmt.Fprintf(d.cfg.Out, "[sink %06d] %s\n", d.seq.Add(1), line)
	} else {
		_, err = fmt.Fprintf(d.cfg.Out, "[sink] %s\n", line)
	}
	return err
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
