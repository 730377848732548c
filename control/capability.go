// Package control is the typed replacement of a method table: every command
// is a value that knows which capability interface it needs from the target.
package control

import (
	"context"
	"image/color"

	"github.com/xaionaro-go/avfile/types"
)

type FrameRateSetter interface {
	SetFrameRate(ctx context.Context, fps float64) error
}

type FrameRateGetter interface {
	FrameRate(ctx context.Context) (float64, error)
}

type GeometrySetter interface {
	SetGeometry(ctx context.Context, geometry types.Geometry) error
}

type GeometryGetter interface {
	Geometry(ctx context.Context) (types.Geometry, error)
}

type PixelFormatGetter interface {
	PixelFormat(ctx context.Context) (types.PixelFormat, error)
}

type AutoFitSetter interface {
	SetAutoFit(ctx context.Context, enable bool) error
}

type VideoShower interface {
	ShowVideo(ctx context.Context, show bool) error
}

type LocalViewModeSetter interface {
	SetLocalViewMode(ctx context.Context, mode int) error
}

type MirroringEnabler interface {
	EnableMirroring(ctx context.Context, enable bool) error
}

type LocalViewScaleFactorSetter interface {
	SetLocalViewScaleFactor(ctx context.Context, factor float64) error
}

type BackgroundColorSetter interface {
	SetBackgroundColor(ctx context.Context, c color.RGBA) error
}

type NativeWindowIDGetter interface {
	NativeWindowID(ctx context.Context) (uintptr, error)
}

type NativeWindowIDSetter interface {
	SetNativeWindowID(ctx context.Context, id uintptr) error
}
