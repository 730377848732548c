package types

import (
	"fmt"
)

type PixelFormat int

const (
	PixelFormatUndefined = PixelFormat(iota)
	PixelFormatYUV420P
	PixelFormatNV12
	PixelFormatRGBA
	endOfPixelFormat
)

// PixelFormatCanonical is the layout every frame is normalized to
// before it leaves a source or enters a sink.
const PixelFormatCanonical = PixelFormatYUV420P

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatUndefined:
		return "<undefined>"
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("<unknown_pixel_format_%d>", int(f))
	}
}

// Planes returns the line size and the amount of lines of every plane
// of a picture of the given geometry.
func (f PixelFormat) Planes(g Geometry) (strides []int, heights []int) {
	w, h := int(g.Width), int(g.Height)
	cw, ch := (w+1)/2, (h+1)/2
	switch f {
	case PixelFormatYUV420P:
		return []int{w, cw, cw}, []int{h, ch, ch}
	case PixelFormatNV12:
		return []int{w, cw * 2}, []int{h, ch}
	case PixelFormatRGBA:
		return []int{w * 4}, []int{h}
	default:
		return nil, nil
	}
}

func PixelFormatFromString(s string) (PixelFormat, error) {
	for f := PixelFormatUndefined + 1; f < endOfPixelFormat; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return PixelFormatUndefined, fmt.Errorf("unknown pixel format '%s'", s)
}
