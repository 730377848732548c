package dummy

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/types"
)

func TestDemuxDecodeLoop(t *testing.T) {
	ctx := context.Background()
	a := New()
	a.AddClip("clip.mp4", Clip{
		Format:    types.PictureFormat{Geometry: types.GeometryQCIF, PixelFormat: types.PixelFormatYUV420P},
		FrameRate: types.Rational{Num: 30, Den: 1},
		Frames:    2,
		WithAudio: true,
	})

	_, err := a.OpenForRead(ctx, "missing.mp4")
	var errOpen codec.ErrOpen
	require.ErrorAs(t, err, &errOpen)

	d, err := a.OpenForRead(ctx, "clip.mp4")
	require.NoError(t, err)
	stream, err := d.VideoStream(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stream.Index)
	require.Equal(t, float64(30), stream.FrameRate())

	dec, err := a.OpenDecoder(ctx, stream)
	require.NoError(t, err)

	var lumas []byte
	for round := 0; round < 2; round++ {
		for {
			pkt, err := d.ReadPacket(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			if pkt.StreamIndex != stream.Index {
				continue
			}
			pic, err := dec.Decode(ctx, pkt)
			require.NoError(t, err)
			lumas = append(lumas, pic.(*frame.Frame).Planes[0][0])
			pic.Release()
		}
		require.NoError(t, d.SeekToStart(ctx))
	}
	require.Equal(t, []byte{PictureLuma(0), PictureLuma(1), PictureLuma(0), PictureLuma(1)}, lumas)

	require.Equal(t, int64(2), a.OpenHandles())
	require.NoError(t, dec.Close(ctx))
	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
	require.Equal(t, int64(0), a.OpenHandles())
}

func TestEncodeMux(t *testing.T) {
	ctx := context.Background()
	a := New()
	a.EncoderDelay = 2

	enc, err := a.OpenEncoder(ctx, codec.DefaultEncoderParams(types.GeometryQCIF, 128000))
	require.NoError(t, err)
	m, err := a.OpenForWrite(ctx, "out.0.unknownext", codec.FormatHintMPEG)
	require.NoError(t, err)
	require.NoError(t, m.AddVideoStream(ctx, enc))
	require.NoError(t, m.WriteHeader(ctx))

	for idx := 0; idx < 5; idx++ {
		f, err := frame.New(types.GeometryQCIF, types.PixelFormatYUV420P)
		require.NoError(t, err)
		f.PTS = int64(idx)
		pkt, err := enc.Encode(ctx, f)
		f.Release()
		if idx < 2 {
			require.ErrorIs(t, err, codec.ErrNoOutput)
			continue
		}
		require.NoError(t, err)
		require.NoError(t, m.WritePacket(ctx, pkt))
	}
	for {
		pkt, err := enc.Encode(ctx, nil)
		if errors.Is(err, codec.ErrNoOutput) {
			break
		}
		require.NoError(t, err)
		require.NoError(t, m.WritePacket(ctx, pkt))
	}
	require.NoError(t, m.WriteTrailer(ctx))
	require.NoError(t, enc.Close(ctx))
	require.NoError(t, m.Close(ctx))

	rec := a.Recording("out.0.unknownext")
	require.NotNil(t, rec)
	require.Equal(t, "mpeg", rec.Container)
	require.True(t, rec.IsFinalized())
	require.Len(t, rec.Packets(), 5)
	require.Equal(t, int64(4), rec.Packets()[4].PTS)
	require.Equal(t, int64(0), a.OpenHandles())
}

func TestEncoderRejectsGeometryMismatch(t *testing.T) {
	ctx := context.Background()
	a := New()
	enc, err := a.OpenEncoder(ctx, codec.DefaultEncoderParams(types.GeometryCIF, 800000))
	require.NoError(t, err)
	f, err := frame.New(types.GeometryQCIF, types.PixelFormatYUV420P)
	require.NoError(t, err)
	_, err = enc.Encode(ctx, f)
	var errEncode codec.ErrEncode
	require.ErrorAs(t, err, &errEncode)
}

func TestPerFrameFailuresEvery(t *testing.T) {
	ctx := context.Background()
	a := New()
	enc, err := a.OpenEncoder(ctx, codec.DefaultEncoderParams(types.GeometryQCIF, 128000))
	require.NoError(t, err)
	defer enc.Close(ctx)
	f, err := frame.New(types.GeometryQCIF, types.PixelFormatYUV420P)
	require.NoError(t, err)
	defer f.Release()

	errBroken := errors.New("broken encoder")
	a.SetFailures(Failures{Encode: errBroken, Every: 3})
	var failed []int
	for idx := 0; idx < 7; idx++ {
		_, err := enc.Encode(ctx, f)
		if err != nil {
			require.ErrorIs(t, err, errBroken)
			failed = append(failed, idx)
		}
	}
	require.Equal(t, []int{0, 3, 6}, failed)

	// flushing is not a per-frame call
	_, err = enc.Encode(ctx, nil)
	require.ErrorIs(t, err, codec.ErrNoOutput)

	a.SetFailures(Failures{})
	_, err = enc.Encode(ctx, f)
	require.NoError(t, err)
}
