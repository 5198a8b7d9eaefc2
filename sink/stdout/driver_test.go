package stdout

import (
	"bytes"
	"context"
	"testing"

	"metasync/internal/catalog"
	"metasync/sink"

	"github.com/stretchr/testify/require"
)

func TestStdoutSink_PrintsCounter(t *testing.T) {
	a, err := sink.NewAdapter("stdout")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.Configure(Config{PrintCounter: true, Out: &buf}))

	e := catalog.Entity{
		Name:       "dataset:ns.d",
		SourceType: catalog.SourceHive,
		EntityType: catalog.EntityDataset,
		TagsToAdd:  []string{"pii"},
	}
	require.NoError(t, a.Publish(context.Background(), e))
	require.NoError(t, a.Publish(context.Background(), e))

	require.Equal(t,
		"[sink 000001] dataset:ns.d HIVE/DATASET +tags[pii] -tags[] +props[0] -props[]\n"+
			"[sink 000002] dataset:ns.d HIVE/DATASET +tags[pii] -tags[] +props[0] -props[]\n",
		buf.String())
}

func TestStdoutSink_RejectsWrongConfig(t *testing.T) {
	a, err := sink.NewAdapter("stdout")
	require.NoError(t, err)
	require.Error(t, a.Configure(struct{}{}))
}
