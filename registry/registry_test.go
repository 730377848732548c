package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextFilePath(t *testing.T) {
	r := New()
	require.Equal(t, filepath.Join(".", "outputvideo.0.mp4"), r.NextFilePath("", "outputvideo", "mp4"))
	require.Equal(t, filepath.Join("/tmp", "outputvideo.1.mp4"), r.NextFilePath("/tmp", "outputvideo", "mp4"))

	other := New()
	require.Equal(t, uint64(0), other.NextSequence())
}

func TestWithCodecLockSerializes(t *testing.T) {
	ctx := context.Background()
	r := New()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.WithCodecLock(ctx, func() error {
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				inside--
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)

	errTest := errors.New("test")
	require.ErrorIs(t, r.WithCodecLock(ctx, func() error { return errTest }), errTest)
}

func TestSessionCount(t *testing.T) {
	r := New()
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()
	require.Equal(t, int64(1), r.LiveSessions())
}
