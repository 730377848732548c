package control

import (
	"context"
	"fmt"
	"image/color"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
)

type Command interface {
	fmt.Stringer
	Execute(ctx context.Context, target any) (any, error)
}

type ErrNotSupported struct {
	Command Command
	Target  any
}

func (e ErrNotSupported) Error() string {
	return fmt.Sprintf("%T does not support %s", e.Target, e.Command)
}

// Call executes the command against the target. An unsupported command is
// reported with ErrNotSupported and has no effect.
func Call(
	ctx context.Context,
	target any,
	cmd Command,
) (_ret any, _err error) {
	logger.Tracef(ctx, "Call(%s)", cmd)
	defer func() { logger.Tracef(ctx, "/Call(%s): %v %v", cmd, _ret, _err) }()
	if cmd == nil {
		return nil, fmt.Errorf("no command")
	}
	return cmd.Execute(ctx, target)
}

func capability[T any](target any, cmd Command) (T, error) {
	c, ok := target.(T)
	if !ok {
		return c, ErrNotSupported{Command: cmd, Target: target}
	}
	return c, nil
}

type SetFrameRate struct {
	FPS float64
}

func (cmd SetFrameRate) String() string {
	return fmt.Sprintf("SetFrameRate(%v)", cmd.FPS)
}

func (cmd SetFrameRate) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[FrameRateSetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetFrameRate(ctx, cmd.FPS)
}

type GetFrameRate struct{}

func (cmd GetFrameRate) String() string {
	return "GetFrameRate"
}

func (cmd GetFrameRate) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[FrameRateGetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return c.FrameRate(ctx)
}

type SetGeometry struct {
	Geometry types.Geometry
}

func (cmd SetGeometry) String() string {
	return fmt.Sprintf("SetGeometry(%s)", cmd.Geometry)
}

func (cmd SetGeometry) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[GeometrySetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetGeometry(ctx, cmd.Geometry)
}

type GetGeometry struct{}

func (cmd GetGeometry) String() string {
	return "GetGeometry"
}

func (cmd GetGeometry) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[GeometryGetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return c.Geometry(ctx)
}

type GetPixelFormat struct{}

func (cmd GetPixelFormat) String() string {
	return "GetPixelFormat"
}

func (cmd GetPixelFormat) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[PixelFormatGetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return c.PixelFormat(ctx)
}

type EnableAutoFit struct {
	Enable bool
}

func (cmd EnableAutoFit) String() string {
	return fmt.Sprintf("EnableAutoFit(%t)", cmd.Enable)
}

func (cmd EnableAutoFit) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[AutoFitSetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetAutoFit(ctx, cmd.Enable)
}

type ShowVideo struct {
	Show bool
}

func (cmd ShowVideo) String() string {
	return fmt.Sprintf("ShowVideo(%t)", cmd.Show)
}

func (cmd ShowVideo) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[VideoShower](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.ShowVideo(ctx, cmd.Show)
}

type SetLocalViewMode struct {
	Mode int
}

func (cmd SetLocalViewMode) String() string {
	return fmt.Sprintf("SetLocalViewMode(%d)", cmd.Mode)
}

func (cmd SetLocalViewMode) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[LocalViewModeSetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetLocalViewMode(ctx, cmd.Mode)
}

type EnableMirroring struct {
	Enable bool
}

func (cmd EnableMirroring) String() string {
	return fmt.Sprintf("EnableMirroring(%t)", cmd.Enable)
}

func (cmd EnableMirroring) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[MirroringEnabler](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.EnableMirroring(ctx, cmd.Enable)
}

type SetLocalViewScaleFactor struct {
	Factor float64
}

func (cmd SetLocalViewScaleFactor) String() string {
	return fmt.Sprintf("SetLocalViewScaleFactor(%v)", cmd.Factor)
}

func (cmd SetLocalViewScaleFactor) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[LocalViewScaleFactorSetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetLocalViewScaleFactor(ctx, cmd.Factor)
}

type SetBackgroundColor struct {
	Color color.RGBA
}

func (cmd SetBackgroundColor) String() string {
	return fmt.Sprintf("SetBackgroundColor(%v)", cmd.Color)
}

func (cmd SetBackgroundColor) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[BackgroundColorSetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetBackgroundColor(ctx, cmd.Color)
}

type GetNativeWindowID struct{}

func (cmd GetNativeWindowID) String() string {
	return "GetNativeWindowID"
}

func (cmd GetNativeWindowID) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[NativeWindowIDGetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return c.NativeWindowID(ctx)
}

type SetNativeWindowID struct {
	ID uintptr
}

func (cmd SetNativeWindowID) String() string {
	return fmt.Sprintf("SetNativeWindowID(%#x)", cmd.ID)
}

func (cmd SetNativeWindowID) Execute(ctx context.Context, target any) (any, error) {
	c, err := capability[NativeWindowIDSetter](target, cmd)
	if err != nil {
		return nil, err
	}
	return nil, c.SetNativeWindowID(ctx, cmd.ID)
}
