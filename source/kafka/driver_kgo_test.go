package kafka

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"

	"metasync/internal/offset"
)

// newFakeCluster starts a one-broker cluster with a single-partition topic
// holding n records at offsets [0, n).
func newFakeCluster(t *testing.T, topic string, n int) []string {
	c, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, topic))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	cl, err := kgo.NewClient(kgo.SeedBrokers(c.ListenAddrs()...))
	require.NoError(t, err)
	defer cl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		r := &kgo.Record{Topic: topic, Value: []byte(strconv.Itoa(i))}
		require.NoError(t, cl.ProduceSync(ctx, r).FirstErr())
	}
	return c.ListenAddrs()
}

func newKgoFetcher(t *testing.T, brokers []string) *KgoFetcher {
	f := &KgoFetcher{}
	require.NoError(t, f.Configure(Config{
		Brokers:   brokers,
		ClientID:  "metasync-test",
		FetchWait: time.Second,
	}))
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestKgoFetcher_ContinuesAndRewinds(t *testing.T) {
	f := newKgoFetcher(t, newFakeCluster(t, "audit", 7))
	ctx := context.Background()

	fetch := func(from offset.Offset) []int64 {
		t.Helper()
		it, err := f.Fetch(ctx, Request{Topic: "audit", Partition: 0, Limit: 3, From: from})
		require.NoError(t, err)
		return offsetsOf(t, it)
	}

	require.Equal(t, []int64{0, 1, 2}, fetch(""))
	require.Equal(t, []int64{3, 4, 5}, fetch(EncodeOffset(2)))
	require.Equal(t, []int64{6}, fetch(EncodeOffset(5)))
	require.Empty(t, fetch(EncodeOffset(6)))

	// a caller that did not commit asks for an earlier position again
	require.Equal(t, []int64{2, 3, 4}, fetch(EncodeOffset(1)))
}

func TestKgoFetcher_MissingTopic(t *testing.T) {
	f := newKgoFetcher(t, newFakeCluster(t, "audit", 0))

	_, err := f.Fetch(context.Background(), Request{Topic: "absent", Partition: 0, Limit: 3})
	require.ErrorIs(t, err, ErrTopicNotFound)

	_, err = f.Fetch(context.Background(), Request{Topic: "audit", Partition: 4, Limit: 3})
	require.ErrorIs(t, err, ErrTopicNotFound)
}
