package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/internal"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
	"go.uber.org/atomic"
)

// Scaler is a software scale context converting into one of the layouts
// of package frame.
type Scaler struct {
	*astiav.SoftwareScaleContext
	src, dst types.PictureFormat

	srcFrame *astiav.Frame
	dstFrame *astiav.Frame
	closed   atomic.Bool
}

var _ codec.Scaler = (*Scaler)(nil)

func NewScaler(
	ctx context.Context,
	src types.PictureFormat,
	dst types.PictureFormat,
	opts ...astiav.SoftwareScaleContextFlag,
) (*Scaler, error) {
	if dst.PixelFormat == types.PixelFormatUndefined {
		return nil, fmt.Errorf("destination pixel format %s is not supported", dst)
	}
	if src.Geometry.IsZero() || dst.Geometry.IsZero() {
		return nil, fmt.Errorf("invalid geometry %s -> %s", src, dst)
	}
	if len(opts) == 0 {
		opts = []astiav.SoftwareScaleContextFlag{astiav.SoftwareScaleContextFlagBilinear}
	}
	swSCtx, err := astiav.CreateSoftwareScaleContext(
		int(src.Geometry.Width),
		int(src.Geometry.Height),
		pictureFormatToAstiav(src),
		int(dst.Geometry.Width),
		int(dst.Geometry.Height),
		pictureFormatToAstiav(dst),
		astiav.NewSoftwareScaleContextFlags(opts...),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create a software scale context: %w", err)
	}
	internal.SetFinalizerFree(ctx, swSCtx)
	s := &Scaler{
		SoftwareScaleContext: swSCtx,
		src:                  src,
		dst:                  dst,
		srcFrame:             astiav.AllocFrame(),
		dstFrame:             astiav.AllocFrame(),
	}
	internal.SetFinalizerFree(ctx, s.srcFrame)
	internal.SetFinalizerFree(ctx, s.dstFrame)
	return s, nil
}

func (s *Scaler) String() string {
	return fmt.Sprintf("SoftwareScaler(%s -> %s)", s.src, s.dst)
}

func (s *Scaler) Source() types.PictureFormat {
	return s.src
}

func (s *Scaler) Destination() types.PictureFormat {
	return s.dst
}

// Close frees the scale context and the scratch frames. The scaler is
// not usable afterwards.
func (s *Scaler) Close(ctx context.Context) error {
	logger.Tracef(ctx, "Close")
	defer logger.Tracef(ctx, "/Close")
	if s.closed.Swap(true) {
		return nil
	}
	internal.ClearFinalizer(s.srcFrame)
	s.srcFrame.Free()
	internal.ClearFinalizer(s.dstFrame)
	s.dstFrame.Free()
	internal.ClearFinalizer(s.SoftwareScaleContext)
	s.SoftwareScaleContext.Free()
	return nil
}

func (s *Scaler) Scale(
	ctx context.Context,
	src codec.Picture,
) (_ret *frame.Frame, _err error) {
	logger.Tracef(ctx, "Scale")
	defer func() { logger.Tracef(ctx, "/Scale: %v", _err) }()
	if s.closed.Load() {
		return nil, codec.ErrScale{Err: codec.ErrClosed{}}
	}
	if format := src.GetFormat(); format != s.src {
		return nil, codec.ErrScale{Err: fmt.Errorf("expected a picture %s, got %s", s.src, format)}
	}

	var (
		srcFrame  *astiav.Frame
		marker    bool
		timestamp uint32
		pts       int64
	)
	switch src := src.(type) {
	case *picture:
		srcFrame = src.Frame
		pts = src.Frame.Pts()
	case *frame.Frame:
		if s.src == s.dst {
			return src.Clone()
		}
		if err := copyFromFrame(s.srcFrame, src); err != nil {
			return nil, codec.ErrScale{Err: err}
		}
		defer s.srcFrame.Unref()
		srcFrame = s.srcFrame
		marker, timestamp, pts = src.Marker, src.Timestamp, src.PTS
	default:
		return nil, codec.ErrScale{Err: fmt.Errorf("unsupported picture type %T", src)}
	}

	s.dstFrame.SetWidth(int(s.dst.Geometry.Width))
	s.dstFrame.SetHeight(int(s.dst.Geometry.Height))
	s.dstFrame.SetPixelFormat(pictureFormatToAstiav(s.dst))
	if err := s.SoftwareScaleContext.ScaleFrame(srcFrame, s.dstFrame); err != nil {
		return nil, codec.ErrScale{Err: fmt.Errorf("unable to scale a frame: %w", err)}
	}
	defer s.dstFrame.Unref()

	f, err := copyToFrame(s.dstFrame)
	if err != nil {
		return nil, codec.ErrScale{Err: err}
	}
	f.Marker = marker
	f.Timestamp = timestamp
	f.PTS = pts
	return f, nil
}
