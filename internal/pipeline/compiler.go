package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/multierr"

	"metasync/internal/catalog"
	"metasync/internal/config"
	"metasync/internal/consumer"
	"metasync/internal/logging"
	"metasync/internal/offset"
	"metasync/internal/partition"
	"metasync/internal/spec"
	"metasync/sink"
	mirror "metasync/sink/kafka"
	"metasync/sink/navigator"
	"metasync/sink/stdout"
	"metasync/source/kafka"
)

// Source is one compiled consumer source.
type Source struct {
	Spec       spec.SourceSpec
	Kafka      kafka.Config
	Group      *consumer.Group
	fetcher    kafka.Fetcher
	partitions int32
}

// Pipeline is everything a running process needs, built from the pipeline
// file.
type Pipeline struct {
	Spec      spec.File
	Publisher *Publisher
	Sources   []*Source

	// Search proxies catalog searches; nil without a navigator sink.
	Search http.Handler

	store *offset.BoltStore

	closeOnce sync.Once
	closeErr  error
}

// Compile loads the pipeline file at path and builds it.
func Compile(ctx context.Context, path string) (*Pipeline, error) {
	f, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	return Build(ctx, f)
}

// Build wires sinks, the offset store and one consumer group per source. On
// error everything built so far is closed.
func Build(ctx context.Context, f spec.File) (p *Pipeline, err error) {
	p = &Pipeline{Spec: f, Publisher: NewPublisher()}
	defer func() {
		if err != nil {
			err = multierr.Append(err, p.Close())
			p = nil
		}
	}()

	ns, err := p.buildSinks(f)
	if err != nil {
		return p, err
	}

	p.store, err = offset.OpenBolt(ctx, offset.BoltOptions{Path: f.Offsets.Path})
	if err != nil {
		return p, err
	}

	for _, ss := range f.Sources {
		src, err := p.buildSource(f, ss, catalog.Translator{Namespace: ns})
		if err != nil {
			return p, fmt.Errorf("source %s: %w", ss.Name, err)
		}
		p.Sources = append(p.Sources, src)
	}
	return p, nil
}

// buildSinks configures every sink and returns the catalog namespace.
func (p *Pipeline) buildSinks(f spec.File) (string, error) {
	ns := navigator.DefaultNamespace
	for _, name := range f.Sinks {
		a, err := sink.NewAdapter(name)
		if err != nil {
			return ns, err
		}

		switch name {
		case "navigator":
			var nc navigator.Config
			if nc, err = config.LoadNavigatorConfig(f.SinkConfigs.Navigator); err == nil {
				err = a.Configure(nc)
				ns = nc.Namespace
				p.Search = navigator.SearchHandler(navigator.NewClient(nc, nil))
				logging.L().Info("navigator sink configured", "settings", nc.Map())
			}
		case "kafka":
			var mc mirror.Config
			if mc, err = config.LoadMirrorConfig(f.SinkConfigs.Kafka); err == nil {
				err = a.Configure(mc)
			}
		case "stdout":
			err = a.Configure(stdout.Config{
				DelayMS:      f.Debug.PerFrameDelayMS,
				PrintCounter: f.Debug.PrintCounter,
			})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			_ = a.Close()
			return ns, fmt.Errorf("sink %s: %w", name, err)
		}
		p.Publisher.AddSink(name, a)
	}
	return ns, nil
}

func (p *Pipeline) buildSource(f spec.File, ss spec.SourceSpec, tr catalog.Translator) (*Source, error) {
	kc, err := config.LoadKafkaConfig(ss)
	if err != nil {
		return nil, err
	}
	store, err := p.store.Bucket(BucketFor(f, kc))
	if err != nil {
		return nil, err
	}

	fetcher, err := kafka.NewFetcher(ss.Driver)
	if err != nil {
		return nil, err
	}
	if err := fetcher.Configure(kc); err != nil {
		return nil, err
	}
	src := &Source{Spec: ss, Kafka: kc, fetcher: fetcher, partitions: kc.Partitions}

	src.Group, err = consumer.NewGroup(consumer.GroupConfig{
		Source:    ss.Name,
		Namespace: kc.Namespace,
		Topic:     kc.Topic,
		Sharded:   ss.Sharded(),
		Limit:     kc.Limit,
		Budget:    f.Schedule.SessionBudget(),
	}, src.layout(f.Instance), fetcher, store, NewProcessor(ss.Name, tr, p.Publisher))
	if err != nil {
		_ = fetcher.Close()
		return nil, err
	}
	return src, nil
}

func (s *Source) layout(in spec.Instance) partition.Layout {
	return partition.Layout{Partitions: s.partitions, InstanceCount: in.Count, InstanceID: in.ID}
}

// BucketFor is the offset bucket a source writes to: the pipeline-wide
// bucket when set, else the source's own.
func BucketFor(f spec.File, kc kafka.Config) string {
	if f.Offsets.Bucket != "" {
		return f.Offsets.Bucket
	}
	return kc.OffsetBucket
}

// Rebalance queues a new instance layout on every source. Nothing changes
// unless every source accepts it.
func (p *Pipeline) Rebalance(in spec.Instance) error {
	for _, s := range p.Sources {
		if err := s.layout(in).Validate(); err != nil {
			return err
		}
	}
	for _, s := range p.Sources {
		if err := s.Group.Rebalance(s.layout(in)); err != nil {
			return err
		}
	}
	p.Spec.Instance = in
	return nil
}

// Close releases fetchers, sinks and the offset store. It is idempotent.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		for _, s := range p.Sources {
			p.closeErr = multierr.Append(p.closeErr, s.fetcher.Close())
		}
		p.closeErr = multierr.Append(p.closeErr, p.Publisher.Close())
		if p.store != nil {
			p.closeErr = multierr.Append(p.closeErr, p.store.Close())
		}
	})
	return p.closeErr
}
