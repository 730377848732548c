package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/codec/dummy"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/pipeline"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/types"
)

const clipPath = "clip.mp4"

func newTestSource(t *testing.T, frames int, cfg Config) (*Source, *dummy.Adapter, *registry.Registry) {
	a := dummy.New()
	a.AddClip(clipPath, dummy.Clip{
		Format:    types.PictureFormat{Geometry: types.GeometryCIF, PixelFormat: types.PixelFormatYUV420P},
		FrameRate: types.Rational{Num: 25, Den: 1},
		Frames:    frames,
		WithAudio: true,
	})
	reg := registry.New()
	cfg.Path = clipPath
	return New(reg, a, cfg), a, reg
}

func releaseAll(frames []*frame.Frame) {
	for _, f := range frames {
		f.Release()
	}
}

func TestNonexistentPathIsInert(t *testing.T) {
	ctx := context.Background()
	s := New(registry.New(), dummy.New(), Config{Path: "/nonexistent.mp4"})

	err := s.Open(ctx, "/nonexistent.mp4", types.GeometryCIF)
	var errOpen codec.ErrOpen
	require.ErrorAs(t, err, &errOpen)
	require.ErrorAs(t, s.OpenError(ctx), &errOpen)

	s.Start(ctx)
	require.False(t, s.IsRunning(ctx))
	for idx := 0; idx < 1000; idx++ {
		require.Empty(t, s.Produce(ctx, time.Duration(idx)*10*time.Millisecond))
	}
	require.Equal(t, uint64(0), s.Emitted(ctx))
	s.Stop(ctx)
	require.NoError(t, s.Close(ctx))
}

func TestStarvation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSource(t, 10, Config{})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	defer s.Close(ctx)

	// not started: the queue stays empty
	for idx := 0; idx < 100; idx++ {
		require.Empty(t, s.Produce(ctx, time.Duration(idx)*100*time.Millisecond))
	}
	require.Equal(t, uint64(0), s.Emitted(ctx))
	require.NotZero(t, s.Stats(ctx).Starved)
}

func TestBackpressureBound(t *testing.T) {
	ctx := context.Background()
	const softCap = 5
	s, _, _ := newTestSource(t, 3, Config{QueueSoftCap: softCap})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	s.Start(ctx)
	defer s.Close(ctx)

	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) >= softCap
	}, 5*time.Second, time.Millisecond)
	for idx := 0; idx < 50; idx++ {
		require.LessOrEqual(t, s.QueueLen(ctx), softCap+1)
		time.Sleep(time.Millisecond)
	}

	// consuming makes room for more
	releaseAll(s.Produce(ctx, 0))
	releaseAll(s.Produce(ctx, time.Second))
	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) == softCap
	}, 5*time.Second, time.Millisecond)
}

func TestLoopRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSource(t, 3, Config{FrameRate: 100, MaxFramesPerTick: -1})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	s.Start(ctx)
	defer s.Close(ctx)

	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) >= 7
	}, 5*time.Second, time.Millisecond)

	s.Produce(ctx, 0)
	frames := s.Produce(ctx, 70*time.Millisecond)
	require.Len(t, frames, 7)
	defer releaseAll(frames)
	var lumas []byte
	for _, f := range frames {
		require.True(t, f.Marker)
		require.Equal(t, types.GeometryCIF, f.Geometry)
		require.Equal(t, uint32(70*90), f.Timestamp)
		lumas = append(lumas, f.Planes[0][0])
	}
	l0, l1, l2 := dummy.PictureLuma(0), dummy.PictureLuma(1), dummy.PictureLuma(2)
	require.Equal(t, []byte{l0, l1, l2, l0, l1, l2, l0}, lumas)
	require.GreaterOrEqual(t, s.Stats(ctx).Rewinds, uint64(2))
}

func TestSeekFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s, a, _ := newTestSource(t, 2, Config{BackpressurePoll: time.Millisecond})
	a.SetFailures(dummy.Failures{Seek: context.DeadlineExceeded})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return s.Stats(ctx).SeekFailures >= 2
	}, 5*time.Second, time.Millisecond)
	require.True(t, s.IsRunning(ctx))
	require.Equal(t, 2, s.QueueLen(ctx))

	s.Stop(ctx)
	require.NoError(t, s.Close(ctx))
}

func TestIdempotentLifecycle(t *testing.T) {
	ctx := context.Background()
	s, a, reg := newTestSource(t, 5, Config{})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	s.Start(ctx)
	s.Start(ctx)
	require.True(t, s.IsRunning(ctx))
	require.Equal(t, int64(1), a.DecodersOpened())
	require.Equal(t, int64(1), reg.LiveSessions())

	s.Stop(ctx)
	s.Stop(ctx)
	require.False(t, s.IsRunning(ctx))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	require.Equal(t, int64(0), a.OpenHandles())
	require.Equal(t, int64(0), reg.LiveSessions())
	require.Equal(t, 0, s.QueueLen(ctx))
}

func TestSetOutputGeometry(t *testing.T) {
	ctx := context.Background()
	s, a, _ := newTestSource(t, 5, Config{})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	s.Start(ctx)
	defer s.Close(ctx)

	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) > 0
	}, 5*time.Second, time.Millisecond)
	s.Produce(ctx, 0)
	releaseAll(s.Produce(ctx, 40*time.Millisecond))
	require.Equal(t, uint64(1), s.Emitted(ctx))

	require.NoError(t, s.SetOutputGeometry(ctx, types.GeometryQCIF))
	require.True(t, s.IsRunning(ctx))
	require.Equal(t, uint64(0), s.Emitted(ctx))
	g, err := s.Geometry(ctx)
	require.NoError(t, err)
	require.Equal(t, types.GeometryQCIF, g)
	require.Equal(t, int64(2), a.DecodersOpened())

	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) > 0
	}, 5*time.Second, time.Millisecond)
	s.Produce(ctx, time.Second)
	frames := s.Produce(ctx, time.Second+40*time.Millisecond)
	require.Len(t, frames, 1)
	require.Equal(t, types.GeometryQCIF, frames[0].Geometry)
	releaseAll(frames)
}

func TestFrameRate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSource(t, 5, Config{})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	defer s.Close(ctx)

	fps, err := s.FrameRate(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(25), fps)

	require.NoError(t, s.SetFrameRate(ctx, 10))
	fps, err = s.FrameRate(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(10), fps)

	pixFmt, err := s.PixelFormat(ctx)
	require.NoError(t, err)
	require.Equal(t, types.PixelFormatCanonical, pixFmt)
}

func TestAsPipelineFilter(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSource(t, 4, Config{})

	g := pipeline.NewGraph()
	g.Add(ctx, s)
	ticker := pipeline.NewTicker(10 * time.Millisecond)
	start := time.Unix(0, 0)
	require.NoError(t, ticker.Attach(ctx, g, start))
	require.True(t, s.IsRunning(ctx))

	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) > 4
	}, 5*time.Second, time.Millisecond)
	for idx := 1; idx <= 100; idx++ {
		_, err := ticker.Step(ctx, start.Add(time.Duration(idx)*10*time.Millisecond))
		require.NoError(t, err)
	}
	// no output link: the frames are produced and released
	require.Equal(t, uint64(25), s.Emitted(ctx))

	require.NoError(t, ticker.Detach(ctx))
	require.False(t, s.IsRunning(ctx))
	require.NoError(t, g.Uninit(ctx))
}

func TestNoVideoStreamIsInert(t *testing.T) {
	ctx := context.Background()
	s, a, reg := newTestSource(t, 0, Config{})

	err := s.Open(ctx, clipPath, types.GeometryCIF)
	var errOpen codec.ErrOpen
	require.ErrorAs(t, err, &errOpen)
	require.ErrorIs(t, err, codec.ErrNoVideoStream)
	require.ErrorIs(t, s.OpenError(ctx), codec.ErrNoVideoStream)
	// already reported
	require.False(t, s.reporter.Errorf(ctx, clipPath, "unable to open '%s'", clipPath))

	s.Start(ctx)
	require.False(t, s.IsRunning(ctx))
	for idx := 0; idx < 100; idx++ {
		require.Empty(t, s.Produce(ctx, time.Duration(idx)*10*time.Millisecond))
	}
	require.Zero(t, s.Emitted(ctx))
	require.Zero(t, s.Stats(ctx).Decoded)
	require.Zero(t, a.OpenHandles())
	require.Zero(t, reg.LiveSessions())
	require.NoError(t, s.Close(ctx))
}

func TestPerFrameFailuresAreDropped(t *testing.T) {
	errBroken := errors.New("broken picture")
	for _, tc := range []struct {
		name     string
		failures dummy.Failures
	}{
		{name: "decode", failures: dummy.Failures{Decode: errBroken, Every: 2}},
		{name: "scale", failures: dummy.Failures{Scale: errBroken, Every: 2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s, a, _ := newTestSource(t, 4, Config{FrameRate: 100, MaxFramesPerTick: -1})
			require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
			a.SetFailures(tc.failures)
			s.Start(ctx)
			defer s.Close(ctx)

			require.Eventually(t, func() bool {
				return s.QueueLen(ctx) >= 4
			}, 5*time.Second, time.Millisecond)
			require.True(t, s.IsRunning(ctx))
			require.GreaterOrEqual(t, s.Stats(ctx).Dropped, uint64(2))

			s.Produce(ctx, 0)
			frames := s.Produce(ctx, 40*time.Millisecond)
			defer releaseAll(frames)
			require.Len(t, frames, 4)
			var lumas []byte
			for _, f := range frames {
				lumas = append(lumas, f.Planes[0][0])
			}
			// pictures 0 and 2 fail on every loop
			l1, l3 := dummy.PictureLuma(1), dummy.PictureLuma(3)
			require.Equal(t, []byte{l1, l3, l1, l3}, lumas)
		})
	}
}

func TestPersistentReadFailureDoesNotSpin(t *testing.T) {
	ctx := context.Background()
	s, a, _ := newTestSource(t, 4, Config{BackpressurePoll: 20 * time.Millisecond})
	require.NoError(t, s.Open(ctx, clipPath, types.GeometryCIF))
	a.SetFailures(dummy.Failures{ReadPacket: errors.New("input/output error")})
	s.Start(ctx)
	defer s.Close(ctx)

	require.Eventually(t, func() bool {
		return s.Stats(ctx).Dropped >= 2
	}, 5*time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Less(t, s.Stats(ctx).Dropped, uint64(20))
	require.True(t, s.IsRunning(ctx))
	require.Zero(t, s.QueueLen(ctx))

	a.SetFailures(dummy.Failures{})
	require.Eventually(t, func() bool {
		return s.QueueLen(ctx) >= 4
	}, 5*time.Second, time.Millisecond)
}
