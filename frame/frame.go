// Package frame provides the owning picture buffer that travels between
// the endpoints and the host pipeline.
package frame

import (
	"fmt"

	"github.com/xaionaro-go/avfile/types"
	"go.uber.org/atomic"
)

// Frame is a decoded picture. Whoever holds a *Frame owns it: after it is
// handed to a queue or to another component the previous holder must not
// touch it anymore. Release returns the plane memory to the pool.
type Frame struct {
	Geometry    types.Geometry
	PixelFormat types.PixelFormat
	Planes      [][]byte
	Strides     []int

	// Marker flags the first packet of a new picture (RTP-style).
	Marker bool

	// Timestamp is in the pipeline clock (see ClockRate).
	Timestamp uint32

	// PTS is the presentation index assigned by the encoding side.
	PTS int64

	planeBufs []*[]byte
	released  atomic.Bool
}

// ClockRate is the rate of the pipeline clock used by Frame.Timestamp.
const ClockRate = 90000

// New allocates a frame with zeroed planes of the given geometry and format.
func New(
	geometry types.Geometry,
	pixFmt types.PixelFormat,
) (*Frame, error) {
	strides, heights := pixFmt.Planes(geometry)
	if strides == nil {
		return nil, fmt.Errorf("unsupported pixel format %s", pixFmt)
	}
	if geometry.IsZero() {
		return nil, fmt.Errorf("invalid geometry %s", geometry)
	}
	f := &Frame{
		Geometry:    geometry,
		PixelFormat: pixFmt,
		Strides:     strides,
		Planes:      make([][]byte, len(strides)),
		planeBufs:   make([]*[]byte, len(strides)),
	}
	for idx := range strides {
		f.planeBufs[idx] = getPlane(strides[idx] * heights[idx])
		f.Planes[idx] = *f.planeBufs[idx]
	}
	return f, nil
}

func (f *Frame) String() string {
	if f == nil {
		return "Frame(<nil>)"
	}
	return fmt.Sprintf("Frame(%s %s ts:%d pts:%d)", f.Geometry, f.PixelFormat, f.Timestamp, f.PTS)
}

// Release returns the plane memory. Safe to call more than once.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	if f.released.Swap(true) {
		return
	}
	for _, buf := range f.planeBufs {
		putPlane(buf)
	}
	f.planeBufs = nil
	f.Planes = nil
}

func (f *Frame) IsReleased() bool {
	return f.released.Load()
}

// Size is the total amount of bytes in all the planes.
func (f *Frame) Size() int {
	var s int
	for _, p := range f.Planes {
		s += len(p)
	}
	return s
}

// Clone returns a deep copy owned by the caller.
func (f *Frame) Clone() (*Frame, error) {
	c, err := New(f.Geometry, f.PixelFormat)
	if err != nil {
		return nil, err
	}
	for idx := range f.Planes {
		copy(c.Planes[idx], f.Planes[idx])
	}
	c.Marker = f.Marker
	c.Timestamp = f.Timestamp
	c.PTS = f.PTS
	return c, nil
}

// FillBlack paints the picture black.
func (f *Frame) FillBlack() {
	f.Fill(16, 128, 128)
}

// Fill paints the picture with a single YUV color.
func (f *Frame) Fill(y, u, v byte) {
	switch f.PixelFormat {
	case types.PixelFormatYUV420P:
		fillBytes(f.Planes[0], y)
		fillBytes(f.Planes[1], u)
		fillBytes(f.Planes[2], v)
	case types.PixelFormatNV12:
		fillBytes(f.Planes[0], y)
		for idx := 0; idx+1 < len(f.Planes[1]); idx += 2 {
			f.Planes[1][idx] = u
			f.Planes[1][idx+1] = v
		}
	}
}

func fillBytes(b []byte, v byte) {
	for idx := range b {
		b[idx] = v
	}
}

// GetFormat makes Frame usable as a codec.Picture.
func (f *Frame) GetFormat() types.PictureFormat {
	return types.PictureFormat{
		Geometry:    f.Geometry,
		PixelFormat: f.PixelFormat,
	}
}
