package control_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/codec/dummy"
	"github.com/xaionaro-go/avfile/control"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/sink"
	"github.com/xaionaro-go/avfile/source"
	"github.com/xaionaro-go/avfile/types"
)

func TestSinkCommands(t *testing.T) {
	ctx := context.Background()
	s := sink.New(registry.New(), dummy.New(), sink.Config{ManualStart: true})

	_, err := control.Call(ctx, s, control.SetGeometry{Geometry: types.GeometryVGA})
	require.NoError(t, err)
	g, err := control.Call(ctx, s, control.GetGeometry{})
	require.NoError(t, err)
	require.Equal(t, types.GeometryVGA, g)

	_, err = control.Call(ctx, s, control.SetFrameRate{FPS: 30})
	require.NoError(t, err)
	fps, err := control.Call(ctx, s, control.GetFrameRate{})
	require.NoError(t, err)
	require.Equal(t, float64(30), fps)

	pixFmt, err := control.Call(ctx, s, control.GetPixelFormat{})
	require.NoError(t, err)
	require.Equal(t, types.PixelFormatYUV420P, pixFmt)

	_, err = control.Call(ctx, s, control.EnableAutoFit{Enable: true})
	require.NoError(t, err)
	require.True(t, s.AutoFit(ctx))

	for _, cmd := range []control.Command{
		control.SetLocalViewMode{Mode: 2},
		control.EnableMirroring{Enable: true},
		control.SetLocalViewScaleFactor{Factor: 0.25},
		control.SetBackgroundColor{Color: color.RGBA{R: 255, A: 255}},
		control.SetNativeWindowID{ID: 0x1234},
		control.GetNativeWindowID{},
	} {
		_, err := control.Call(ctx, s, cmd)
		require.NoError(t, err, cmd.String())
	}

	_, err = control.Call(ctx, s, control.ShowVideo{Show: true})
	require.NoError(t, err)
	require.True(t, s.IsRunning(ctx))
	_, err = control.Call(ctx, s, control.ShowVideo{Show: false})
	require.NoError(t, err)
	require.False(t, s.IsRunning(ctx))
}

func TestSourceCommands(t *testing.T) {
	ctx := context.Background()
	src := source.New(registry.New(), dummy.New(), source.Config{})

	_, err := control.Call(ctx, src, control.SetFrameRate{FPS: 12.5})
	require.NoError(t, err)
	fps, err := control.Call(ctx, src, control.GetFrameRate{})
	require.NoError(t, err)
	require.Equal(t, 12.5, fps)

	g, err := control.Call(ctx, src, control.GetGeometry{})
	require.NoError(t, err)
	require.Equal(t, types.GeometryCIF, g)

	for _, cmd := range []control.Command{
		control.EnableAutoFit{Enable: true},
		control.ShowVideo{Show: true},
		control.SetBackgroundColor{},
		control.GetNativeWindowID{},
	} {
		_, err := control.Call(ctx, src, cmd)
		var errNotSupported control.ErrNotSupported
		require.ErrorAs(t, err, &errNotSupported, cmd.String())
	}

	_, err = control.Call(ctx, struct{}{}, control.GetFrameRate{})
	require.ErrorAs(t, err, &control.ErrNotSupported{})
	_, err = control.Call(ctx, src, nil)
	require.Error(t, err)
}
