package offset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// DefaultBucket is the bucket used when BoltOptions.Bucket is empty.
const DefaultBucket = "offsets"

// BoltOptions configures OpenBolt.
type BoltOptions struct {
	Path   string
	Bucket string
	Mode   os.FileMode

	// Timeout bounds how long Open waits for the file lock. When zero the
	// context deadline is used, if any.
	Timeout time.Duration
}

// BoltStore is a Store backed by a BoltDB file. Every Write is its own
// fsync'd transaction.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
	view   bool // shares db with the store it was derived from
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens (creating if needed) the BoltDB file and bucket.
func OpenBolt(ctx context.Context, opts BoltOptions) (*BoltStore, error) {
	if opts.Path == "" {
		return nil, errors.New("offset: bolt path must not be empty")
	}
	bucket := opts.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	mode := opts.Mode
	if mode == 0 {
		mode = 0o600
	}

	bopts := &bbolt.Options{Timeout: opts.Timeout}
	if timeout, ok := linger.FromContextDeadline(ctx); ok {
		if bopts.Timeout == 0 || timeout < bopts.Timeout {
			bopts.Timeout = timeout
		}
	}

	db, err := bbolt.Open(opts.Path, mode, bopts)
	if err != nil {
		return nil, fmt.Errorf("offset: open %s: %w", opts.Path, err)
	}

	s := &BoltStore{db: db, bucket: []byte(bucket)}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("offset: create bucket %q: %w", bucket, err)
	}
	return s, nil
}

func (s *BoltStore) Read(ctx context.Context, k string) (Offset, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var (
		o  Offset
		ok bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(k)); v != nil {
			// v is only valid for the life of the transaction.
			o, ok = Offset(string(v)), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("offset: read %s: %w", k, err)
	}
	return o, ok, nil
}

func (s *BoltStore) Write(ctx context.Context, k string, o Offset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(k), []byte(o))
	})
	if err != nil {
		return fmt.Errorf("offset: write %s: %w", k, err)
	}
	return nil
}

func (s *BoltStore) Delete(ctx context.Context, k string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(k))
	})
	if err != nil {
		return fmt.Errorf("offset: delete %s: %w", k, err)
	}
	return nil
}

func (s *BoltStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Bucket returns a store over another bucket of the same file. Closing the
// returned store is a no-op; close the original instead.
func (s *BoltStore) Bucket(name string) (*BoltStore, error) {
	if name == "" {
		return nil, errors.New("offset: bucket name must not be empty")
	}
	v := &BoltStore{db: s.db, bucket: []byte(name), view: true}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(v.bucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("offset: create bucket %q: %w", name, err)
	}
	return v, nil
}

func (s *BoltStore) Close() error {
	if s.view {
		return nil
	}
	return s.db.Close()
}
