// Package scaler implements a pure-Go picture converter: it normalizes the
// supported pixel formats to planar YUV 4:2:0 and resamples every plane
// with bild.
package scaler

import (
	"context"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
	"go.uber.org/atomic"
)

type Planar struct {
	src    types.PictureFormat
	dst    types.PictureFormat
	filter transform.ResampleFilter
	closed atomic.Bool
}

var _ codec.Scaler = (*Planar)(nil)

// New returns a scaler from src to dst. The destination pixel format must be
// YUV420P or NV12.
func New(
	src types.PictureFormat,
	dst types.PictureFormat,
	filter transform.ResampleFilter,
) (*Planar, error) {
	if src.Geometry.IsZero() || dst.Geometry.IsZero() {
		return nil, codec.ErrScale{Err: fmt.Errorf("invalid geometry: %s -> %s", src.Geometry, dst.Geometry)}
	}
	switch src.PixelFormat {
	case types.PixelFormatYUV420P, types.PixelFormatNV12, types.PixelFormatRGBA:
	default:
		return nil, codec.ErrScale{Err: fmt.Errorf("unsupported source pixel format %s", src.PixelFormat)}
	}
	switch dst.PixelFormat {
	case types.PixelFormatYUV420P, types.PixelFormatNV12:
	default:
		return nil, codec.ErrScale{Err: fmt.Errorf("unsupported destination pixel format %s", dst.PixelFormat)}
	}
	if filter.Kernel == nil && filter.Support == 0 {
		filter = transform.Linear
	}
	return &Planar{
		src:    src,
		dst:    dst,
		filter: filter,
	}, nil
}

func (s *Planar) String() string {
	return fmt.Sprintf("PlanarScaler(%s -> %s)", s.src, s.dst)
}

func (s *Planar) Source() types.PictureFormat {
	return s.src
}

func (s *Planar) Destination() types.PictureFormat {
	return s.dst
}

func (s *Planar) Close(ctx context.Context) error {
	logger.Tracef(ctx, "Close")
	defer logger.Tracef(ctx, "/Close")
	s.closed.Store(true)
	return nil
}

func (s *Planar) Scale(
	ctx context.Context,
	src codec.Picture,
) (_ret *frame.Frame, _err error) {
	logger.Tracef(ctx, "Scale")
	defer func() { logger.Tracef(ctx, "/Scale: %v", _err) }()
	if s.closed.Load() {
		return nil, codec.ErrScale{Err: codec.ErrClosed{}}
	}

	in, ok := src.(*frame.Frame)
	if !ok {
		return nil, codec.ErrScale{Err: fmt.Errorf("unexpected picture type %T", src)}
	}
	if in.IsReleased() {
		return nil, codec.ErrScale{Err: fmt.Errorf("the source frame is already released")}
	}
	if in.GetFormat() != s.src {
		return nil, codec.ErrScale{Err: fmt.Errorf("the picture is %s, but the scaler is built for %s", in.GetFormat(), s.src)}
	}

	y, u, v := toPlanar420(in)
	dstW, dstH := int(s.dst.Geometry.Width), int(s.dst.Geometry.Height)
	cw, ch := (dstW+1)/2, (dstH+1)/2
	y = s.resample(y, dstW, dstH)
	u = s.resample(u, cw, ch)
	v = s.resample(v, cw, ch)

	out, err := frame.New(s.dst.Geometry, s.dst.PixelFormat)
	if err != nil {
		return nil, codec.ErrScale{Err: err}
	}
	copyGray(out.Planes[0], out.Strides[0], y)
	switch s.dst.PixelFormat {
	case types.PixelFormatYUV420P:
		copyGray(out.Planes[1], out.Strides[1], u)
		copyGray(out.Planes[2], out.Strides[2], v)
	case types.PixelFormatNV12:
		interleave(out.Planes[1], out.Strides[1], u, v)
	}
	out.Marker = in.Marker
	out.Timestamp = in.Timestamp
	out.PTS = in.PTS
	return out, nil
}

func (s *Planar) resample(img *image.Gray, w, h int) *image.Gray {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	rgba := transform.Resize(img, w, h, s.filter)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		src := rgba.Pix[row*rgba.Stride:]
		dst := out.Pix[row*out.Stride:]
		for col := 0; col < w; col++ {
			dst[col] = src[col*4]
		}
	}
	return out
}
