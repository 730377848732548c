package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/codec/dummy"
	"github.com/xaionaro-go/avfile/control"
	"github.com/xaionaro-go/avfile/pipeline"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/sink"
	"github.com/xaionaro-go/avfile/source"
	"github.com/xaionaro-go/avfile/types"
)

func TestFileLoopRecording(t *testing.T) {
	ctx := context.Background()
	a := dummy.New()
	a.AddClip("in.mp4", dummy.Clip{
		Format:    types.PictureFormat{Geometry: types.GeometryCIF, PixelFormat: types.PixelFormatYUV420P},
		FrameRate: types.Rational{Num: 25, Den: 1},
		Frames:    4,
		WithAudio: true,
	})
	reg := registry.New()
	src := source.New(reg, a, source.Config{Path: "in.mp4"})
	snk := sink.New(reg, a, sink.Config{Geometry: types.GeometryCIF, AutoFit: true})

	g := pipeline.NewGraph()
	_, err := g.Link(ctx, src, 0, snk, 0)
	require.NoError(t, err)

	ticker := pipeline.NewTicker(10 * time.Millisecond)
	start := time.Unix(0, 0)
	require.NoError(t, ticker.Attach(ctx, g, start))
	require.NoError(t, src.OpenError(ctx))
	require.True(t, snk.IsReady(ctx))

	var ticks int
	step := func() {
		ticks++
		_, err := ticker.Step(ctx, start.Add(time.Duration(ticks)*10*time.Millisecond))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return src.QueueLen(ctx) > 4
	}, 5*time.Second, time.Millisecond)
	for ticks < 100 {
		step()
	}
	require.Equal(t, uint64(25), src.Emitted(ctx))

	first := snk.Path(ctx)
	require.Eventually(t, func() bool {
		return len(a.Recording(first).Packets()) == 25
	}, 5*time.Second, time.Millisecond)

	_, err = control.Call(ctx, src, control.SetGeometry{Geometry: types.GeometryVGA})
	require.NoError(t, err)
	restarted := func() bool {
		paths := snk.Paths(ctx)
		return len(paths) == 2 && len(a.Recording(paths[1]).Packets()) > 0
	}
	for deadline := time.Now().Add(5 * time.Second); !restarted(); {
		require.True(t, time.Now().Before(deadline), "the sink did not restart at the new geometry")
		step()
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, ticker.Detach(ctx))
	require.NoError(t, g.Uninit(ctx))

	paths := snk.Paths(ctx)
	require.Len(t, paths, 2)
	require.Equal(t, first, paths[0])
	for idx, geometry := range []types.Geometry{types.GeometryCIF, types.GeometryVGA} {
		rec := a.Recording(paths[idx])
		require.True(t, rec.IsFinalized(), paths[idx])
		require.Equal(t, geometry, rec.Streams()[0].Geometry)
	}
	require.Zero(t, a.OpenHandles())
	require.Zero(t, reg.LiveSessions())
}
