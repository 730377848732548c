package types

import "fmt"

// PictureFormat describes the layout of a picture. NativePixelFormat is an
// adapter-specific identifier used when PixelFormat is PixelFormatUndefined
// (e.g. a decoder output format this module has no name for).
type PictureFormat struct {
	Geometry          Geometry
	PixelFormat       PixelFormat
	NativePixelFormat int
}

func (f PictureFormat) String() string {
	if f.PixelFormat == PixelFormatUndefined {
		return fmt.Sprintf("%s:native(%d)", f.Geometry, f.NativePixelFormat)
	}
	return fmt.Sprintf("%s:%s", f.Geometry, f.PixelFormat)
}
