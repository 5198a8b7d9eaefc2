package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// expired gives Acquire a short deadline so an empty bucket fails fast.
func expired(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestController_AcquireUntilEmpty(t *testing.T) {
	c := NewController(2, 1, time.Hour)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Acquire(ctx))
	require.NoError(t, c.Acquire(ctx))
	require.ErrorIs(t, c.Acquire(expired(t)), context.DeadlineExceeded)
}

func TestController_Refills(t *testing.T) {
	c := NewController(1, 1, 5*time.Millisecond)
	defer c.Close()
	require.NoError(t, c.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Acquire(ctx))
}

func TestController_RefillCapsAtCapacity(t *testing.T) {
	c := NewController(2, 5, 5*time.Millisecond)
	defer c.Close()
	time.Sleep(30 * time.Millisecond)

	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()
	require.EqualValues(t, 2, tokens)
}

func TestController_CloseUnblocks(t *testing.T) {
	c := NewController(1, 1, time.Hour)
	require.NoError(t, c.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() { done <- c.Acquire(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	c.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after Close")
	}
}

func TestPerSecond(t *testing.T) {
	c := PerSecond(100)
	defer c.Close()
	require.EqualValues(t, 100, c.capacity)
	require.EqualValues(t, 10, c.refill)
}
