package libav

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/logger"
)

type Decoder struct {
	codecContext *astiav.CodecContext
	closer       *astikit.Closer
	stream       codec.StreamInfo

	// pending are the pictures received but not returned yet.
	pending []*astiav.Frame
}

var _ codec.Decoder = (*Decoder)(nil)

func NewDecoder(
	ctx context.Context,
	stream codec.StreamInfo,
) (_ret *Decoder, _err error) {
	logger.Tracef(ctx, "NewDecoder(ctx, %s)", stream)
	defer func() { logger.Tracef(ctx, "/NewDecoder(ctx, %s): %v", stream, _err) }()

	st, ok := stream.Native.(*astiav.Stream)
	if !ok {
		return nil, fmt.Errorf("the stream was not opened by this adapter: %T", stream.Native)
	}
	cp := st.CodecParameters()
	c := astiav.FindDecoder(cp.CodecID())
	if c == nil {
		return nil, fmt.Errorf("unable to find a decoder for '%s'", cp.CodecID())
	}

	d := &Decoder{
		closer: astikit.NewCloser(),
		stream: stream,
	}
	defer func() {
		if _err != nil {
			_ = d.closer.Close()
		}
	}()

	d.codecContext = astiav.AllocCodecContext(c)
	if d.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}
	d.closer.Add(d.codecContext.Free)

	if err := cp.ToCodecContext(d.codecContext); err != nil {
		return nil, fmt.Errorf("codecParameters.ToCodecContext(...) returned error: %w", err)
	}
	if stream.AvgFrameRate.Num > 0 {
		d.codecContext.SetFramerate(rationalToAstiav(stream.AvgFrameRate))
	}
	if err := d.codecContext.Open(c, nil); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}
	d.codecContext.SetTimeBase(st.TimeBase())
	return d, nil
}

func (d *Decoder) Close(ctx context.Context) error {
	logger.Tracef(ctx, "Close")
	defer logger.Tracef(ctx, "/Close")
	for _, f := range d.pending {
		f.Free()
	}
	d.pending = nil
	return d.closer.Close()
}

func (d *Decoder) Decode(
	ctx context.Context,
	pkt *codec.Packet,
) (_ codec.Picture, _err error) {
	logger.Tracef(ctx, "Decode(ctx, %s)", pkt)
	defer func() { logger.Tracef(ctx, "/Decode(ctx, %s): %v", pkt, _err) }()

	native, ok := pkt.Native.(*astiav.Packet)
	if !ok {
		return nil, codec.ErrDecode{Err: fmt.Errorf("the packet was not read by this adapter: %T", pkt.Native)}
	}

	err := d.codecContext.SendPacket(native)
	if errors.Is(err, astiav.ErrEagain) {
		// the output must be drained before the decoder accepts more input
		if err := d.receiveAll(ctx); err != nil {
			return nil, codec.ErrDecode{Err: err}
		}
		err = d.codecContext.SendPacket(native)
	}
	if err != nil {
		return nil, codec.ErrDecode{Err: fmt.Errorf("unable to send the packet: %w", err)}
	}
	if err := d.receiveAll(ctx); err != nil {
		return nil, codec.ErrDecode{Err: err}
	}

	if len(d.pending) == 0 {
		return nil, codec.ErrNeedMoreInput
	}
	f := d.pending[0]
	d.pending = d.pending[1:]
	return &picture{Frame: f}, nil
}

func (d *Decoder) receiveAll(ctx context.Context) error {
	for {
		f := astiav.AllocFrame()
		err := d.codecContext.ReceiveFrame(f)
		switch {
		case err == nil:
			logger.Tracef(ctx, "received a picture %dx%d:%s", f.Width(), f.Height(), f.PixelFormat())
			d.pending = append(d.pending, f)
		case errors.Is(err, astiav.ErrEof), errors.Is(err, astiav.ErrEagain):
			f.Free()
			return nil
		default:
			f.Free()
			return fmt.Errorf("unable to receive a frame: %w", err)
		}
	}
}
