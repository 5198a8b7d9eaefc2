package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"metasync/source/kafka"
	mockkafka "metasync/source/kafka/mock"
)

var fetcher = mockkafka.NewFetcher()

func init() {
	kafka.Register("engine-mock", func() kafka.Fetcher { return fetcher })
}

const pipelineYml = `
instance: {id: 0, count: %d}
schedule: {interval: 10ms, tx_timeout: 2s, safety_margin: 1s}
offsets: {path: offsets.db}
sources:
  - {name: metadata, kind: metadata, driver: engine-mock, config: kafka.yml}
sinks: [stdout]
`

func writePipeline(t *testing.T, dir string, count int) string {
	t.Helper()
	path := filepath.Join(dir, "pipeline.yml")
	body := []byte(fmt.Sprintf(pipelineYml, count))
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func TestEngine_RunConsumesUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kafka.yml"),
		[]byte("brokers: [\"k:9092\"]\ntopic: meta\npartitions: 2\n"), 0o644))
	path := writePipeline(t, dir, 1)
	fetcher.Append("meta", 0, []byte(`{"type":"ACCESS"}`))
	fetcher.Append("meta", 1, []byte(`{"type":"ACCESS"}`))

	ctx, cancel := context.WithCancel(context.Background())
	e, err := Bootstrap(ctx, Config{PipelineYml: path})
	require.NoError(t, err)
	require.Nil(t, e.transport)
	require.Nil(t, e.admin)

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, r := range fetcher.Requests() {
			if r.Partition == 1 && r.From == kafka.EncodeOffset(0) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.True(t, e.healthy())

	// scale out: this instance keeps only partition 0 after the reload
	writePipeline(t, dir, 2)
	require.NoError(t, e.Reload())
	require.Eventually(t, func() bool {
		owned := e.pipeline.Sources[0].Group.Owned()
		return len(owned) == 1 && owned[0] == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.True(t, fetcher.Closed())
}

func TestEngine_SetServingTracksHealth(t *testing.T) {
	e := &Engine{status: map[string]bool{}}
	e.setServing("a", true)
	e.setServing("b", true)
	require.True(t, e.healthy())
	e.setServing("b", false)
	require.False(t, e.healthy())
	e.setServing("b", true)
	require.True(t, e.healthy())
}
