package libav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/asticode/go-astiav"
	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/internal"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/unsafetools"
)

// Demuxer is an opened input container. It is used from a single
// goroutine (the decode loop of the owning source).
type Demuxer struct {
	*astiav.FormatContext
	Path string
}

var _ codec.Demuxer = (*Demuxer)(nil)

func OpenInput(
	ctx context.Context,
	path string,
) (_ret *Demuxer, _err error) {
	logger.Debugf(ctx, "OpenInput(ctx, '%s')", path)
	defer func() { logger.Debugf(ctx, "/OpenInput(ctx, '%s'): %v", path, _err) }()

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, codec.ErrOpen{Path: path, Err: err}
	}
	d := &Demuxer{
		FormatContext: fc,
		Path:          path,
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		d.free()
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to get stream info: %w", err)}
	}

	for _, stream := range fc.Streams() {
		logger.Debugf(ctx, "input stream #%d: %#+v", stream.Index(), spew.Sdump(unsafetools.FieldByNameInValue(reflect.ValueOf(stream.CodecParameters()), "c").Elem().Elem().Interface()))
	}
	return d, nil
}

func (d *Demuxer) free() {
	if d.FormatContext == nil {
		return
	}
	d.FormatContext.CloseInput()
	d.FormatContext.Free()
	d.FormatContext = nil
}

func (d *Demuxer) Close(ctx context.Context) error {
	logger.Tracef(ctx, "Close")
	defer logger.Tracef(ctx, "/Close")
	d.free()
	return nil
}

func (d *Demuxer) VideoStream(ctx context.Context) (codec.StreamInfo, error) {
	if d.FormatContext == nil {
		return codec.StreamInfo{}, codec.ErrClosed{}
	}
	for _, stream := range d.FormatContext.Streams() {
		cp := stream.CodecParameters()
		if cp.MediaType() != astiav.MediaTypeVideo {
			continue
		}
		return codec.StreamInfo{
			Index:        stream.Index(),
			CodecName:    cp.CodecID().Name(),
			Format:       pictureFormat(cp.Width(), cp.Height(), cp.PixelFormat()),
			AvgFrameRate: rationalFromAstiav(d.FormatContext.GuessFrameRate(stream, nil)),
			TimeBase:     rationalFromAstiav(stream.TimeBase()),
			Native:       stream,
		}, nil
	}
	return codec.StreamInfo{}, codec.ErrNoVideoStream
}

func (d *Demuxer) ReadPacket(ctx context.Context) (*codec.Packet, error) {
	if d.FormatContext == nil {
		return nil, codec.ErrClosed{}
	}
	pkt := astiav.AllocPacket()
	err := d.FormatContext.ReadFrame(pkt)
	switch {
	case err == nil:
	case errors.Is(err, astiav.ErrEof), errors.Is(err, astiav.ErrEio):
		pkt.Free()
		return nil, io.EOF
	default:
		pkt.Free()
		return nil, fmt.Errorf("unable to read a frame: %w", err)
	}
	internal.SetFinalizerFree(ctx, pkt)
	logger.Tracef(
		ctx,
		"received a packet (stream:%d, pos:%d, pts:%d, dts:%d, dur:%d), dataLen:%d",
		pkt.StreamIndex(), pkt.Pos(), pkt.Pts(), pkt.Dts(), pkt.Duration(), pkt.Size(),
	)
	return packetFromAstiav(pkt), nil
}

// SeekToStart rewinds to the beginning of the container; byte seeking
// is tried if the timestamp based seek is not supported.
func (d *Demuxer) SeekToStart(ctx context.Context) error {
	if d.FormatContext == nil {
		return codec.ErrSeek{Err: codec.ErrClosed{}}
	}
	err := d.FormatContext.SeekFrame(-1, 0, astiav.NewSeekFlags(astiav.SeekFlagBackward))
	if err == nil {
		return nil
	}
	logger.Debugf(ctx, "unable to seek by timestamp: %v; trying by bytes", err)
	if err := d.FormatContext.SeekFrame(-1, 0, astiav.NewSeekFlags(astiav.SeekFlagByte, astiav.SeekFlagAny)); err != nil {
		return codec.ErrSeek{Err: err}
	}
	return nil
}

func packetFromAstiav(pkt *astiav.Packet) *codec.Packet {
	return &codec.Packet{
		StreamIndex: pkt.StreamIndex(),
		Data:        pkt.Data(),
		PTS:         pkt.Pts(),
		DTS:         pkt.Dts(),
		Duration:    pkt.Duration(),
		IsKey:       pkt.Flags().Has(astiav.PacketFlagKey),
		Native:      pkt,
	}
}
