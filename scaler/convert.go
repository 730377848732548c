package scaler

import (
	"image"
	"image/color"

	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/types"
)

func toPlanar420(f *frame.Frame) (y, u, v *image.Gray) {
	w, h := int(f.Geometry.Width), int(f.Geometry.Height)
	cw, ch := (w+1)/2, (h+1)/2
	switch f.PixelFormat {
	case types.PixelFormatYUV420P:
		return grayView(f.Planes[0], f.Strides[0], w, h),
			grayView(f.Planes[1], f.Strides[1], cw, ch),
			grayView(f.Planes[2], f.Strides[2], cw, ch)
	case types.PixelFormatNV12:
		u = image.NewGray(image.Rect(0, 0, cw, ch))
		v = image.NewGray(image.Rect(0, 0, cw, ch))
		for row := 0; row < ch; row++ {
			src := f.Planes[1][row*f.Strides[1]:]
			for col := 0; col < cw; col++ {
				u.Pix[row*u.Stride+col] = src[col*2]
				v.Pix[row*v.Stride+col] = src[col*2+1]
			}
		}
		return grayView(f.Planes[0], f.Strides[0], w, h), u, v
	case types.PixelFormatRGBA:
		return rgbaToPlanar420(f.Planes[0], f.Strides[0], w, h)
	}
	return nil, nil, nil
}

func grayView(plane []byte, stride, w, h int) *image.Gray {
	return &image.Gray{
		Pix:    plane[:stride*(h-1)+w],
		Stride: stride,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// rgbaToPlanar420 converts with 2x2 chroma averaging.
func rgbaToPlanar420(pix []byte, stride, w, h int) (y, u, v *image.Gray) {
	cw, ch := (w+1)/2, (h+1)/2
	y = image.NewGray(image.Rect(0, 0, w, h))
	u = image.NewGray(image.Rect(0, 0, cw, ch))
	v = image.NewGray(image.Rect(0, 0, cw, ch))
	uSum := make([]int, cw*ch)
	vSum := make([]int, cw*ch)
	count := make([]int, cw*ch)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			p := pix[row*stride+col*4:]
			yy, cb, cr := color.RGBToYCbCr(p[0], p[1], p[2])
			y.Pix[row*y.Stride+col] = yy
			idx := (row/2)*cw + col/2
			uSum[idx] += int(cb)
			vSum[idx] += int(cr)
			count[idx]++
		}
	}
	for idx := range count {
		u.Pix[idx] = byte(uSum[idx] / count[idx])
		v.Pix[idx] = byte(vSum[idx] / count[idx])
	}
	return y, u, v
}

func copyGray(dst []byte, stride int, src *image.Gray) {
	b := src.Bounds()
	for row := 0; row < b.Dy(); row++ {
		copy(dst[row*stride:row*stride+b.Dx()], src.Pix[row*src.Stride:])
	}
}

func interleave(dst []byte, stride int, u, v *image.Gray) {
	b := u.Bounds()
	for row := 0; row < b.Dy(); row++ {
		line := dst[row*stride:]
		for col := 0; col < b.Dx(); col++ {
			line[col*2] = u.Pix[row*u.Stride+col]
			line[col*2+1] = v.Pix[row*v.Stride+col]
		}
	}
}
