package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avfile/types"
)

func pixelFormatToAstiav(f types.PixelFormat) astiav.PixelFormat {
	switch f {
	case types.PixelFormatYUV420P:
		return astiav.PixelFormatYuv420P
	case types.PixelFormatNV12:
		return astiav.PixelFormatNv12
	case types.PixelFormatRGBA:
		return astiav.PixelFormatRgba
	default:
		return astiav.PixelFormatNone
	}
}

func pixelFormatFromAstiav(f astiav.PixelFormat) types.PixelFormat {
	switch f {
	case astiav.PixelFormatYuv420P:
		return types.PixelFormatYUV420P
	case astiav.PixelFormatNv12:
		return types.PixelFormatNV12
	case astiav.PixelFormatRgba:
		return types.PixelFormatRGBA
	default:
		return types.PixelFormatUndefined
	}
}

func pictureFormatToAstiav(f types.PictureFormat) astiav.PixelFormat {
	if f.PixelFormat == types.PixelFormatUndefined {
		return astiav.PixelFormat(f.NativePixelFormat)
	}
	return pixelFormatToAstiav(f.PixelFormat)
}

// pictureFormat keeps the native identifier only for the layouts that
// have no name in package types.
func pictureFormat(width, height int, pixFmt astiav.PixelFormat) types.PictureFormat {
	r := types.PictureFormat{
		Geometry: types.Geometry{
			Width:  uint32(width),
			Height: uint32(height),
		},
		PixelFormat: pixelFormatFromAstiav(pixFmt),
	}
	if r.PixelFormat == types.PixelFormatUndefined {
		r.NativePixelFormat = int(pixFmt)
	}
	return r
}

func rationalToAstiav(r types.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func rationalFromAstiav(r astiav.Rational) types.Rational {
	return types.Rational{Num: r.Num(), Den: r.Den()}
}
