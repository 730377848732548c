package scaler

import (
	"context"
	"testing"

	"github.com/anthonynsimon/bild/transform"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/types"
)

func yuv(g types.Geometry) types.PictureFormat {
	return types.PictureFormat{Geometry: g, PixelFormat: types.PixelFormatYUV420P}
}

func TestScaleSameGeometry(t *testing.T) {
	ctx := context.Background()
	s, err := New(yuv(types.GeometryQCIF), yuv(types.GeometryQCIF), transform.Linear)
	require.NoError(t, err)

	in, err := frame.New(types.GeometryQCIF, types.PixelFormatYUV420P)
	require.NoError(t, err)
	in.Fill(100, 50, 200)
	in.Timestamp = 9000

	out, err := s.Scale(ctx, in)
	require.NoError(t, err)
	require.Equal(t, types.GeometryQCIF, out.Geometry)
	require.Equal(t, uint32(9000), out.Timestamp)
	require.Equal(t, in.Planes[0], out.Planes[0])
	require.Equal(t, in.Planes[2], out.Planes[2])
	in.Release()
	out.Release()
}

func TestScaleUpKeepsFlatColor(t *testing.T) {
	ctx := context.Background()
	s, err := New(yuv(types.GeometryQCIF), yuv(types.GeometryCIF), transform.Linear)
	require.NoError(t, err)

	in, err := frame.New(types.GeometryQCIF, types.PixelFormatYUV420P)
	require.NoError(t, err)
	in.Fill(100, 50, 200)
	defer in.Release()

	out, err := s.Scale(ctx, in)
	require.NoError(t, err)
	defer out.Release()
	require.Equal(t, types.GeometryCIF, out.Geometry)
	require.Len(t, out.Planes[0], 352*288)
	for _, b := range out.Planes[0] {
		require.InDelta(t, 100, int(b), 1)
	}
	for _, b := range out.Planes[1] {
		require.InDelta(t, 50, int(b), 1)
	}
}

func TestScaleFromNV12AndRGBA(t *testing.T) {
	ctx := context.Background()
	g := types.Geometry{Width: 4, Height: 4}

	nv, err := frame.New(g, types.PixelFormatNV12)
	require.NoError(t, err)
	nv.Fill(30, 40, 50)
	s, err := New(nv.GetFormat(), yuv(g), transform.Linear)
	require.NoError(t, err)
	out, err := s.Scale(ctx, nv)
	require.NoError(t, err)
	require.Equal(t, []byte{40, 40, 40, 40}, out.Planes[1])
	require.Equal(t, []byte{50, 50, 50, 50}, out.Planes[2])

	rgba, err := frame.New(g, types.PixelFormatRGBA)
	require.NoError(t, err)
	for idx := 0; idx < len(rgba.Planes[0]); idx += 4 {
		rgba.Planes[0][idx+3] = 255
	}
	s, err = New(rgba.GetFormat(), yuv(g), transform.Linear)
	require.NoError(t, err)
	out, err = s.Scale(ctx, rgba)
	require.NoError(t, err)
	require.Equal(t, byte(0), out.Planes[0][0])
	require.Equal(t, byte(128), out.Planes[1][0])
}

func TestScaleRejectsMismatch(t *testing.T) {
	ctx := context.Background()
	s, err := New(yuv(types.GeometryCIF), yuv(types.GeometryQCIF), transform.Linear)
	require.NoError(t, err)

	in, err := frame.New(types.GeometryQCIF, types.PixelFormatYUV420P)
	require.NoError(t, err)
	_, err = s.Scale(ctx, in)
	require.Error(t, err)

	require.NoError(t, s.Close(ctx))
	_, err = s.Scale(ctx, in)
	require.Error(t, err)

	_, err = New(yuv(types.GeometryCIF), types.PictureFormat{Geometry: types.GeometryCIF, PixelFormat: types.PixelFormatRGBA}, transform.Linear)
	require.Error(t, err)
}
