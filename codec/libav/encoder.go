package libav

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/internal"
	"github.com/xaionaro-go/avfile/logger"
)

type Encoder struct {
	codecContext *astiav.CodecContext
	closer       *astikit.Closer
	params       codec.EncoderParams

	frame    *astiav.Frame
	flushing bool
	pending  []*astiav.Packet
}

var _ codec.Encoder = (*Encoder)(nil)

func NewEncoder(
	ctx context.Context,
	params codec.EncoderParams,
) (_ret *Encoder, _err error) {
	logger.Tracef(ctx, "NewEncoder(ctx, %s)", params)
	defer func() { logger.Tracef(ctx, "/NewEncoder(ctx, %s): %v", params, _err) }()

	c := astiav.FindEncoderByName(params.CodecName)
	if c == nil {
		return nil, fmt.Errorf("unable to find encoder '%s'", params.CodecName)
	}
	pixFmt := pixelFormatToAstiav(params.PixelFormat)
	if pixFmt == astiav.PixelFormatNone {
		return nil, fmt.Errorf("pixel format %s is not supported", params.PixelFormat)
	}

	e := &Encoder{
		closer: astikit.NewCloser(),
		params: params,
	}
	defer func() {
		if _err != nil {
			_ = e.closer.Close()
		}
	}()

	e.codecContext = astiav.AllocCodecContext(c)
	if e.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}
	e.closer.Add(e.codecContext.Free)

	e.codecContext.SetWidth(int(params.Geometry.Width))
	e.codecContext.SetHeight(int(params.Geometry.Height))
	e.codecContext.SetPixelFormat(pixFmt)
	e.codecContext.SetTimeBase(rationalToAstiav(params.TimeBase))
	if params.FrameRate.Num > 0 {
		e.codecContext.SetFramerate(rationalToAstiav(params.FrameRate))
	}
	if params.BitRate > 0 {
		e.codecContext.SetBitRate(int64(params.BitRate))
	}
	e.codecContext.SetGopSize(params.GOP)
	e.codecContext.SetMaxBFrames(params.MaxBFrames)
	if params.GlobalHeader {
		e.codecContext.SetFlags(e.codecContext.Flags() | astiav.CodecContextFlags(astiav.CodecContextFlagGlobalHeader))
	}

	options := astiav.NewDictionary()
	defer options.Free()
	if params.QMin > 0 {
		if err := options.Set("qmin", strconv.Itoa(params.QMin), 0); err != nil {
			return nil, fmt.Errorf("unable to set qmin: %w", err)
		}
	}
	if err := e.codecContext.Open(c, options); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}

	e.frame = astiav.AllocFrame()
	e.closer.Add(e.frame.Free)
	return e, nil
}

func (e *Encoder) Params() codec.EncoderParams {
	return e.params
}

func (e *Encoder) Close(ctx context.Context) error {
	logger.Tracef(ctx, "Close")
	defer logger.Tracef(ctx, "/Close")
	for _, pkt := range e.pending {
		internal.ClearFinalizer(pkt)
		pkt.Free()
	}
	e.pending = nil
	return e.closer.Close()
}

func (e *Encoder) Encode(
	ctx context.Context,
	f *frame.Frame,
) (_ *codec.Packet, _err error) {
	logger.Tracef(ctx, "Encode(ctx, %s)", f)
	defer func() { logger.Tracef(ctx, "/Encode(ctx, %s): %v", f, _err) }()

	switch {
	case f != nil:
		if e.flushing {
			return nil, codec.ErrEncode{Err: fmt.Errorf("the encoder is flushed")}
		}
		if f.Geometry != e.params.Geometry || f.PixelFormat != e.params.PixelFormat {
			return nil, codec.ErrEncode{Err: fmt.Errorf("expected %s:%s, got %s:%s", e.params.Geometry, e.params.PixelFormat, f.Geometry, f.PixelFormat)}
		}
		if err := copyFromFrame(e.frame, f); err != nil {
			return nil, codec.ErrEncode{Err: err}
		}
		e.frame.SetPts(f.PTS)
		err := e.send(ctx, e.frame)
		e.frame.Unref()
		if err != nil {
			return nil, codec.ErrEncode{Err: err}
		}
	case !e.flushing:
		e.flushing = true
		if err := e.send(ctx, nil); err != nil {
			return nil, codec.ErrEncode{Err: err}
		}
	default:
		if err := e.receiveAll(ctx); err != nil {
			return nil, codec.ErrEncode{Err: err}
		}
	}

	if len(e.pending) == 0 {
		return nil, codec.ErrNoOutput
	}
	pkt := e.pending[0]
	e.pending = e.pending[1:]
	return packetFromAstiav(pkt), nil
}

func (e *Encoder) send(ctx context.Context, f *astiav.Frame) error {
	err := e.codecContext.SendFrame(f)
	if errors.Is(err, astiav.ErrEagain) {
		if err := e.receiveAll(ctx); err != nil {
			return err
		}
		err = e.codecContext.SendFrame(f)
	}
	if err != nil {
		return fmt.Errorf("unable to send the frame: %w", err)
	}
	return e.receiveAll(ctx)
}

func (e *Encoder) receiveAll(ctx context.Context) error {
	for {
		pkt := astiav.AllocPacket()
		err := e.codecContext.ReceivePacket(pkt)
		switch {
		case err == nil:
			internal.SetFinalizerFree(ctx, pkt)
			e.pending = append(e.pending, pkt)
		case errors.Is(err, astiav.ErrEof), errors.Is(err, astiav.ErrEagain):
			pkt.Free()
			return nil
		default:
			pkt.Free()
			return fmt.Errorf("unable to receive a packet: %w", err)
		}
	}
}
