package libav

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
)

func init() {
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

func TestLogLevel(t *testing.T) {
	for _, level := range []logger.Level{
		logger.LevelError,
		logger.LevelWarning,
		logger.LevelInfo,
		logger.LevelTrace,
	} {
		assert.Equal(t, level, LogLevelFromAstiav(LogLevelToAstiav(level)), level.String())
	}
	assert.Equal(t, logger.LevelDebug, LogLevelFromAstiav(astiav.LogLevelVerbose))
}

func TestPixelFormat(t *testing.T) {
	for _, f := range []types.PixelFormat{
		types.PixelFormatYUV420P,
		types.PixelFormatNV12,
		types.PixelFormatRGBA,
	} {
		assert.Equal(t, f, pixelFormatFromAstiav(pixelFormatToAstiav(f)))
	}

	native := pictureFormat(4, 2, astiav.PixelFormatYuv444P)
	assert.Equal(t, types.PixelFormatUndefined, native.PixelFormat)
	assert.Equal(t, astiav.PixelFormatYuv444P, pictureFormatToAstiav(native))
}

func TestScaler(t *testing.T) {
	ctx := context.Background()
	src := types.PictureFormat{Geometry: types.GeometryQCIF, PixelFormat: types.PixelFormatYUV420P}
	dst := types.PictureFormat{Geometry: types.GeometryCIF, PixelFormat: types.PixelFormatYUV420P}

	s, err := New().BuildScaler(ctx, src, dst)
	require.NoError(t, err)
	defer s.Close(ctx)

	in, err := frame.New(src.Geometry, src.PixelFormat)
	require.NoError(t, err)
	defer in.Release()
	in.Fill(100, 128, 128)
	in.Timestamp = 900
	in.Marker = true

	out, err := s.Scale(ctx, in)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, dst.Geometry, out.Geometry)
	assert.Equal(t, uint32(900), out.Timestamp)
	assert.True(t, out.Marker)
	assert.InDelta(t, 100, int(out.Planes[0][len(out.Planes[0])/2]), 2)

	wrong, err := frame.New(types.GeometryVGA, types.PixelFormatYUV420P)
	require.NoError(t, err)
	defer wrong.Release()
	_, err = s.Scale(ctx, wrong)
	require.ErrorAs(t, err, &codec.ErrScale{})
}

func TestScalerClose(t *testing.T) {
	ctx := context.Background()
	src := types.PictureFormat{Geometry: types.GeometryQCIF, PixelFormat: types.PixelFormatNV12}
	dst := types.PictureFormat{Geometry: types.GeometryQCIF, PixelFormat: types.PixelFormatYUV420P}

	s, err := NewScaler(ctx, src, dst)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	in, err := frame.New(src.Geometry, src.PixelFormat)
	require.NoError(t, err)
	defer in.Release()
	_, err = s.Scale(ctx, in)
	require.ErrorAs(t, err, &codec.ErrClosed{})
}

func TestWriteAndReadBack(t *testing.T) {
	ctx := context.Background()
	a := New()
	path := filepath.Join(t.TempDir(), "out.avi")
	geometry := types.GeometryQCIF
	const count = 30

	m, err := a.OpenForWrite(ctx, path, codec.FormatHintMPEG)
	require.NoError(t, err)
	params := codec.DefaultEncoderParams(geometry, 200000)
	params.GlobalHeader = m.NeedsGlobalHeader()
	enc, err := a.OpenEncoder(ctx, params)
	require.NoError(t, err)
	require.NoError(t, m.AddVideoStream(ctx, enc))
	require.NoError(t, m.WriteHeader(ctx))

	var written int
	writeAll := func(f *frame.Frame) {
		for {
			pkt, err := enc.Encode(ctx, f)
			if errors.Is(err, codec.ErrNoOutput) {
				return
			}
			require.NoError(t, err)
			require.NoError(t, m.WritePacket(ctx, pkt))
			written++
			if f != nil {
				return
			}
		}
	}
	for idx := 0; idx < count; idx++ {
		f, err := frame.New(geometry, types.PixelFormatYUV420P)
		require.NoError(t, err)
		f.Fill(byte(16+idx*4), 128, 128)
		f.PTS = int64(idx)
		writeAll(f)
		f.Release()
	}
	writeAll(nil)
	require.NoError(t, m.WriteTrailer(ctx))
	require.NoError(t, m.Close(ctx))
	require.NoError(t, enc.Close(ctx))
	require.Equal(t, count, written)

	d, err := a.OpenForRead(ctx, path)
	require.NoError(t, err)
	defer d.Close(ctx)
	stream, err := d.VideoStream(ctx)
	require.NoError(t, err)
	assert.Equal(t, geometry, stream.Format.Geometry)
	assert.Equal(t, codec.CodecNameMPEG4, stream.CodecName)

	dec, err := a.OpenDecoder(ctx, stream)
	require.NoError(t, err)
	defer dec.Close(ctx)

	readAll := func() int {
		var decoded int
		for {
			pkt, err := d.ReadPacket(ctx)
			if errors.Is(err, io.EOF) {
				return decoded
			}
			require.NoError(t, err)
			pic, err := dec.Decode(ctx, pkt)
			if errors.Is(err, codec.ErrNeedMoreInput) {
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, geometry, pic.GetFormat().Geometry)
			pic.Release()
			decoded++
		}
	}
	assert.Equal(t, count, readAll())

	require.NoError(t, d.SeekToStart(ctx))
	assert.Equal(t, count, readAll())
}

func TestOpenMissing(t *testing.T) {
	_, err := New().OpenForRead(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	require.ErrorAs(t, err, &codec.ErrOpen{})
}
