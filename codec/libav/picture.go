package libav

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/types"
	"go.uber.org/atomic"
)

// picture is a decoded picture still in the decoder layout.
type picture struct {
	*astiav.Frame
	released atomic.Bool
}

var _ codec.Picture = (*picture)(nil)

func (p *picture) GetFormat() types.PictureFormat {
	return pictureFormat(p.Frame.Width(), p.Frame.Height(), p.Frame.PixelFormat())
}

func (p *picture) Release() {
	if p.released.Swap(true) {
		return
	}
	p.Frame.Free()
}

func (p *picture) String() string {
	return fmt.Sprintf("picture(%s pts:%d)", p.GetFormat(), p.Frame.Pts())
}

// imageAlign is the line alignment of the contiguous image buffers
// exchanged with the library; 1 means no padding, matching package frame.
const imageAlign = 1

// copyToFrame copies a picture of a layout known to package types into a
// new frame.
func copyToFrame(src *astiav.Frame) (*frame.Frame, error) {
	format := pictureFormat(src.Width(), src.Height(), src.PixelFormat())
	if format.PixelFormat == types.PixelFormatUndefined {
		return nil, fmt.Errorf("pixel format %s is not supported", src.PixelFormat())
	}
	b, err := src.Data().Bytes(imageAlign)
	if err != nil {
		return nil, fmt.Errorf("unable to copy the picture data: %w", err)
	}
	f, err := frame.New(format.Geometry, format.PixelFormat)
	if err != nil {
		return nil, err
	}
	if b := len(b); b < f.Size() {
		f.Release()
		return nil, fmt.Errorf("the picture data is too short: %d < %d", b, f.Size())
	}
	var offset int
	for idx := range f.Planes {
		offset += copy(f.Planes[idx], b[offset:])
	}
	return f, nil
}

// copyFromFrame allocates the buffers of dst and fills them with f.
func copyFromFrame(dst *astiav.Frame, f *frame.Frame) error {
	pixFmt := pixelFormatToAstiav(f.PixelFormat)
	if pixFmt == astiav.PixelFormatNone {
		return fmt.Errorf("pixel format %s is not supported", f.PixelFormat)
	}
	dst.SetWidth(int(f.Geometry.Width))
	dst.SetHeight(int(f.Geometry.Height))
	dst.SetPixelFormat(pixFmt)
	if err := dst.AllocBuffer(0); err != nil {
		return fmt.Errorf("unable to allocate frame buffer: %w", err)
	}
	if err := dst.MakeWritable(); err != nil {
		return fmt.Errorf("unable to make frame writable: %w", err)
	}
	buf := make([]byte, 0, f.Size())
	for _, plane := range f.Planes {
		buf = append(buf, plane...)
	}
	if err := dst.Data().SetBytes(buf, imageAlign); err != nil {
		return fmt.Errorf("unable to set frame data from buffer: %w", err)
	}
	return nil
}
