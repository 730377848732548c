package libav

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/logger"
)

// Muxer is an output file with a single video stream.
type Muxer struct {
	*astiav.FormatContext
	ioContext *astiav.IOContext
	path      string

	stream        *astiav.Stream
	codecTimeBase astiav.Rational
	started       bool
}

var _ codec.Muxer = (*Muxer)(nil)

// OpenOutput creates the file. The container is deduced from the path;
// formatHint is used if the path says nothing.
func OpenOutput(
	ctx context.Context,
	path string,
	formatHint string,
) (_ret *Muxer, _err error) {
	logger.Debugf(ctx, "OpenOutput(ctx, '%s', '%s')", path, formatHint)
	defer func() { logger.Debugf(ctx, "/OpenOutput(ctx, '%s', '%s'): %v", path, formatHint, _err) }()

	formatContext, err := astiav.AllocOutputFormatContext(nil, "", path)
	if err != nil || formatContext == nil {
		logger.Debugf(ctx, "unable to deduce the container from '%s' (%v), using '%s'", path, err, formatHint)
		formatContext, err = astiav.AllocOutputFormatContext(nil, formatHint, path)
	}
	if err != nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("allocating output format context failed: %w", err)}
	}
	if formatContext == nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to allocate the output format context")}
	}
	m := &Muxer{
		FormatContext: formatContext,
		path:          path,
	}
	logger.Debugf(ctx, "output format name: '%s'", formatContext.OutputFormat().Name())

	if formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		return m, nil
	}

	ioContext, err := astiav.OpenIOContext(
		path,
		astiav.NewIOContextFlags(astiav.IOContextFlagWrite),
		nil,
		nil,
	)
	if err != nil {
		formatContext.Free()
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to open IO context: %w", err)}
	}
	m.ioContext = ioContext
	formatContext.SetPb(ioContext)
	return m, nil
}

func (m *Muxer) Path() string {
	return m.path
}

func (m *Muxer) NeedsGlobalHeader() bool {
	return m.FormatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

func (m *Muxer) AddVideoStream(ctx context.Context, enc codec.Encoder) error {
	e, ok := enc.(*Encoder)
	if !ok {
		return fmt.Errorf("the encoder was not opened by this adapter: %T", enc)
	}
	if m.stream != nil {
		return fmt.Errorf("the video stream is already added")
	}
	stream := m.FormatContext.NewStream(nil)
	if stream == nil {
		return fmt.Errorf("unable to create a stream")
	}
	if err := stream.CodecParameters().FromCodecContext(e.codecContext); err != nil {
		return fmt.Errorf("unable to copy the codec parameters: %w", err)
	}
	stream.SetTimeBase(e.codecContext.TimeBase())
	m.stream = stream
	m.codecTimeBase = e.codecContext.TimeBase()
	return nil
}

func (m *Muxer) WriteHeader(ctx context.Context) error {
	if m.stream == nil {
		return fmt.Errorf("no stream is added")
	}
	if err := m.FormatContext.WriteHeader(nil); err != nil {
		return fmt.Errorf("unable to write the header: %w", err)
	}
	m.started = true
	logger.Tracef(ctx, "stream time base after the header: %s", m.stream.TimeBase())
	return nil
}

func (m *Muxer) WritePacket(ctx context.Context, pkt *codec.Packet) error {
	if !m.started {
		return codec.ErrWrite{Err: fmt.Errorf("the header is not written")}
	}
	native, ok := pkt.Native.(*astiav.Packet)
	if !ok {
		return codec.ErrWrite{Err: fmt.Errorf("the packet was not encoded by this adapter: %T", pkt.Native)}
	}
	native.SetStreamIndex(m.stream.Index())
	native.RescaleTs(m.codecTimeBase, m.stream.TimeBase())
	if err := m.FormatContext.WriteInterleavedFrame(native); err != nil {
		return codec.ErrWrite{Err: err}
	}
	return nil
}

func (m *Muxer) WriteTrailer(ctx context.Context) (_err error) {
	if !m.started {
		return fmt.Errorf("the header is not written")
	}
	m.started = false
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("got panic: %v:\n%s\n", r, debug.Stack())
		}
	}()
	logger.Debugf(ctx, "writing the trailer")
	return m.FormatContext.WriteTrailer()
}

func (m *Muxer) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	if m.FormatContext == nil {
		return nil
	}
	var result []error
	if m.ioContext != nil {
		if err := m.ioContext.Close(); err != nil {
			result = append(result, fmt.Errorf("unable to close the IO context: %w", err))
		}
		m.ioContext = nil
	}
	m.FormatContext.Free()
	m.FormatContext = nil
	return errors.Join(result...)
}
