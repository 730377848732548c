package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestStartStop(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	w := New("test")
	require.False(t, w.Stop(ctx))

	var started, finished atomic.Int32
	loop := func(ctx context.Context) {
		started.Inc()
		<-ctx.Done()
		finished.Inc()
	}
	require.True(t, w.Start(ctx, loop))
	require.False(t, w.Start(ctx, loop))
	require.True(t, w.IsRunning(ctx))

	// the loop outlives the context it was started with
	cancelFn()
	require.True(t, w.IsRunning(context.Background()))

	require.True(t, w.Stop(context.Background()))
	require.Equal(t, int32(1), started.Load())
	require.Equal(t, int32(1), finished.Load())
	require.False(t, w.IsRunning(context.Background()))
	require.False(t, w.Stop(context.Background()))

	require.True(t, w.Start(context.Background(), loop))
	require.True(t, w.Stop(context.Background()))
	require.Equal(t, int32(2), finished.Load())
}
