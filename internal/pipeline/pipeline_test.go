package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"metasync/internal/catalog"
	"metasync/internal/consumer"
	"metasync/internal/spec"
	"metasync/sink"
	"metasync/source/kafka"
	mockkafka "metasync/source/kafka/mock"
)

const datasetChange = `{"version":1,"time":1,"user":"alice","type":"METADATA_CHANGE",
 "entityId":{"namespace":"ns1","dataset":"purchases","entity":"DATASET"},
 "payload":{"additions":{"USER":{"tags":["pii"]}},"deletions":{"USER":{"tags":["draft"]}}}}`

// upsertSink keeps the last entity written per external id.
type upsertSink struct {
	mu      sync.Mutex
	state   map[string]catalog.Entity
	writes  int
	failErr error
	closed  bool
}

func newUpsertSink() *upsertSink { return &upsertSink{state: map[string]catalog.Entity{}} }

func (s *upsertSink) Configure(any) error { return nil }
func (s *upsertSink) Publish(_ context.Context, e catalog.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failErr != nil {
		return s.failErr
	}
	s.state[e.ExternalID] = e
	return nil
}
func (s *upsertSink) Close() error { s.closed = true; return nil }

func message(payload string) kafka.Message {
	return kafka.Message{ID: "7", Payload: []byte(payload)}
}

func TestProcessor_Outcomes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		sinkErr error
		want    consumer.Outcome
		writes  int
	}{
		{"published", datasetChange, nil, consumer.Published, 1},
		{"not a metadata change", `{"type":"ACCESS","entityId":{"entity":"DATASET"}}`, nil, consumer.Skipped, 0},
		{"malformed", `{not json`, nil, consumer.Skipped, 0},
		{"unsupported kind", `{"type":"METADATA_CHANGE","entityId":{"entity":"FLOWLET"}}`, nil, consumer.Skipped, 0},
		{"no tag or property changes", `{"type":"METADATA_CHANGE",
 "entityId":{"namespace":"ns1","dataset":"purchases","entity":"DATASET"},
 "payload":{"additions":{},"deletions":{"USER":{}}}}`, nil, consumer.Skipped, 0},
		{"sink failure", datasetChange, errors.New("503"), consumer.Failed, 1},
		{"partial failure", datasetChange,
			&sink.WriteError{Sink: "s", Fields: []sink.FieldError{{Field: "newTags", Message: "bad"}}},
			consumer.Failed, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newUpsertSink()
			s.failErr = c.sinkErr
			pub := NewPublisher()
			pub.AddSink("s", s)

			p := NewProcessor("test", catalog.Translator{Namespace: "CDAP"}, pub)
			require.Equal(t, c.want, p.Handle(context.Background(), message(c.payload)))
			require.Equal(t, c.writes, s.writes)
		})
	}
}

func TestProcessor_TranslatesDatasetDiff(t *testing.T) {
	s := newUpsertSink()
	pub := NewPublisher()
	pub.AddSink("s", s)
	p := NewProcessor("test", catalog.Translator{Namespace: "CDAP"}, pub)

	require.Equal(t, consumer.Published, p.Handle(context.Background(), message(datasetChange)))
	require.Len(t, s.state, 1)
	for _, e := range s.state {
		want := catalog.Entity{
			ExternalID:   e.ExternalID,
			Name:         "dataset:ns1.purchases",
			Namespace:    "CDAP",
			SourceType:   catalog.SourceHive,
			EntityType:   catalog.EntityDataset,
			TagsToAdd:    []string{"pii"},
			TagsToRemove: []string{"draft"},
		}
		if diff := cmp.Diff(want, e); diff != "" {
			t.Fatalf("entity mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestPublisher_RepublishIsIdempotent(t *testing.T) {
	s := newUpsertSink()
	pub := NewPublisher()
	pub.AddSink("s", s)
	p := NewProcessor("test", catalog.Translator{Namespace: "CDAP"}, pub)

	p.Handle(context.Background(), message(datasetChange))
	once := make(map[string]catalog.Entity)
	for k, v := range s.state {
		once[k] = v
	}
	p.Handle(context.Background(), message(datasetChange))

	require.Equal(t, 2, s.writes)
	if diff := cmp.Diff(once, s.state); diff != "" {
		t.Fatalf("state changed on replay (-once +twice):\n%s", diff)
	}
}

func TestPublisher_FansOutAndCombinesErrors(t *testing.T) {
	good, bad1, bad2 := newUpsertSink(), newUpsertSink(), newUpsertSink()
	bad1.failErr = errors.New("timeout")
	bad2.failErr = &sink.WriteError{Sink: "b2", EntityID: "x", Err: errors.New("401")}

	pub := NewPublisher()
	pub.AddSink("b1", bad1)
	pub.AddSink("good", good)
	pub.AddSink("b2", bad2)
	require.Equal(t, []string{"b1", "good", "b2"}, pub.Sinks())

	err := pub.Publish(context.Background(), catalog.Entity{ExternalID: "x"})
	require.Error(t, err)
	require.Len(t, good.state, 1, "a failing sink must not stop the others")

	var we *sink.WriteError
	require.ErrorAs(t, err, &we)
	require.Equal(t, "b1", we.Sink, "plain errors are wrapped with the sink name")
	require.Contains(t, err.Error(), "401")

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	require.True(t, good.closed && bad1.closed && bad2.closed)
}

func init() {
	kafka.Register("mock", func() kafka.Fetcher { return sharedFetcher })
}

var sharedFetcher = mockkafka.NewFetcher()

func TestCompile_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("kafka.yml", "brokers: [\"k:9092\"]\ntopic: e2e-audit\n")
	write("pipeline.yml", `
schedule: {interval: 1s, tx_timeout: 30s, safety_margin: 10s}
offsets: {path: offsets.db}
sources:
  - {name: audit, kind: audit, driver: mock, config: kafka.yml}
sinks: [stdout]
`)
	sharedFetcher.Append("e2e-audit", 0, []byte(datasetChange), []byte(`{"type":"ACCESS"}`))

	p, err := Compile(context.Background(), filepath.Join(dir, "pipeline.yml"))
	require.NoError(t, err)
	require.Len(t, p.Sources, 1)
	require.Nil(t, p.Search)

	src := p.Sources[0]
	require.Equal(t, "e2e-audit", src.Kafka.Topic)
	require.Equal(t, []int32{0}, src.Group.Owned())
	require.NoError(t, src.Group.Session(context.Background()))

	view, err := p.store.Bucket(BucketFor(p.Spec, src.Kafka))
	require.NoError(t, err)
	got, ok, err := view.Read(context.Background(), "system.e2e-audit.offset")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kafka.EncodeOffset(1), got)

	require.NoError(t, p.Rebalance(spec.Instance{ID: 0, Count: 2}))
	require.Error(t, p.Rebalance(spec.Instance{ID: 2, Count: 2}))
	require.NoError(t, p.Close())
	require.True(t, sharedFetcher.Closed())
}

func TestCompile_RejectsUnknownSinkAndDriver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kafka.yml"), []byte("brokers: [k]\n"), 0o644))

	base := spec.File{
		Instance: spec.Instance{Count: 1},
		Offsets:  spec.Offsets{Path: filepath.Join(dir, "o.db")},
		Sources:  []spec.SourceSpec{{Name: "a", Kind: spec.KindAudit, Driver: "mock", Config: filepath.Join(dir, "kafka.yml")}},
	}

	f := base
	f.Sinks = []string{"carrier-pigeon"}
	_, err := Build(context.Background(), f)
	require.Error(t, err)

	f = base
	f.Sinks = []string{"stdout"}
	f.Sources = []spec.SourceSpec{{Name: "a", Kind: spec.KindAudit, Driver: "nope", Config: filepath.Join(dir, "kafka.yml")}}
	_, err = Build(context.Background(), f)
	require.Error(t, err)}

func TestCompile_RejectsMultiPartitionAudit(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("kafka.yml", "brokers: [\"k:9092\"]\ntopic: wide-audit\npartitions: 3\n")
	write("pipeline.yml", `
offsets: {path: offsets.db}
sources:
  - {name: audit, kind: audit, driver: mock, config: kafka.yml}
sinks: [stdout]
`)

	_, err := Compile(context.Background(), filepath.Join(dir, "pipeline.yml"))
	require.ErrorIs(t, err, kafka.ErrInvalidConfig)
}
