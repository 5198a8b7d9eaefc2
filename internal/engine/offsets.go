package engine

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"metasync/internal/config"
	"metasync/internal/offset"
	"metasync/internal/pipeline"
	"metasync/internal/spec"
)

// sourceStores opens the offset file of the pipeline at path and returns one
// store per selected source (all when source is empty).
func sourceStores(ctx context.Context, path, source string) (*offset.BoltStore, []spec.SourceSpec, []*offset.BoltStore, error) {
	f, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := offset.OpenBolt(ctx, offset.BoltOptions{Path: f.Offsets.Path})
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		srcs   []spec.SourceSpec
		stores []*offset.BoltStore
	)
	for _, ss := range f.Sources {
		if source != "" && ss.Name != source {
			continue
		}
		kc, err := config.LoadKafkaConfig(ss)
		if err == nil {
			var st *offset.BoltStore
			if st, err = db.Bucket(pipeline.BucketFor(f, kc)); err == nil {
				srcs, stores = append(srcs, ss), append(stores, st)
				continue
			}
		}
		return nil, nil, nil, multierr.Append(fmt.Errorf("source %s: %w", ss.Name, err), db.Close())
	}
	if len(srcs) == 0 {
		return nil, nil, nil, multierr.Append(fmt.Errorf("no source named %q", source), db.Close())
	}
	return db, srcs, stores, nil
}

// ShowOffsets prints every committed offset as "<source> <key> <offset>".
func ShowOffsets(ctx context.Context, path, source string, w io.Writer) (err error) {
	db, srcs, stores, err := sourceStores(ctx, path, source)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	for i, st := range stores {
		keys, err := st.Keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			o, _, err := st.Read(ctx, k)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", srcs[i].Name, k, o)
		}
	}
	return nil
}

// ResetOffset sets key to `to`, or forgets it when `to` is empty so the next
// session starts from the oldest retained message.
func ResetOffset(ctx context.Context, path, source, key string, to offset.Offset) (err error) {
	if key == "" {
		return fmt.Errorf("offset key must be provided")
	}
	db, _, stores, err := sourceStores(ctx, path, source)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	if len(stores) != 1 {
		return fmt.Errorf("pipeline has %d sources, pick one with -source", len(stores))
	}
	if to.IsZero() {
		return stores[0].Delete(ctx, key)
	}
	return stores[0].Write(ctx, key, to)
}
