package sink

import (
	"context"
	"image/color"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
	"github.com/xaionaro-go/xsync"
)

// SetFrameRate sets the frame rate of the files opened from now on.
func (s *Sink) SetFrameRate(ctx context.Context, fps float64) error {
	logger.Debugf(s.ctx(ctx), "SetFrameRate(%v)", fps)
	s.sessionLocker.Do(ctx, func() {
		s.Config.FrameRate = fps
	})
	return nil
}

func (s *Sink) FrameRate(ctx context.Context) (float64, error) {
	return xsync.DoR1(ctx, &s.sessionLocker, func() float64 {
		return s.Config.FrameRate
	}), nil
}

// SetGeometry sets the wished geometry; a running sink is stopped and
// started again, so the current file is finalized before the new one is
// opened.
func (s *Sink) SetGeometry(ctx context.Context, geometry types.Geometry) (_err error) {
	ctx = s.ctx(ctx)
	logger.Debugf(ctx, "SetGeometry(%s)", geometry)
	defer func() { logger.Debugf(ctx, "/SetGeometry(%s): %v", geometry, _err) }()
	return xsync.DoR1(ctx, &s.filterLocker, func() error {
		wasRunning := s.running.Load()
		if wasRunning {
			if err := s.stopLocked(ctx); err != nil {
				logger.Errorf(ctx, "unable to stop: %v", err)
			}
		}
		s.sessionLocker.Do(ctx, func() {
			s.wished = geometry
		})
		if !wasRunning {
			return nil
		}
		return s.startLocked(ctx)
	})
}

// Geometry returns the wished geometry.
func (s *Sink) Geometry(ctx context.Context) (types.Geometry, error) {
	return xsync.DoR1(ctx, &s.sessionLocker, func() types.Geometry {
		return s.wished
	}), nil
}

// SessionGeometry returns the geometry of the encoder in use and false if
// the sink is not prepared.
func (s *Sink) SessionGeometry(ctx context.Context) (types.Geometry, bool) {
	return xsync.DoR2(ctx, &s.sessionLocker, func() (types.Geometry, bool) {
		if s.session == nil {
			return types.Geometry{}, false
		}
		return s.session.geometry, true
	})
}

func (s *Sink) PixelFormat(ctx context.Context) (types.PixelFormat, error) {
	return types.PixelFormatCanonical, nil
}

// SetAutoFit toggles whether a change of the input geometry restarts the
// session at the new geometry.
func (s *Sink) SetAutoFit(ctx context.Context, enable bool) error {
	logger.Debugf(s.ctx(ctx), "SetAutoFit(%t)", enable)
	s.autoFit.Store(enable)
	return nil
}

func (s *Sink) AutoFit(ctx context.Context) bool {
	return s.autoFit.Load()
}

// ReconfigState is the state of the restart controller.
func (s *Sink) ReconfigState(ctx context.Context) ReconfigState {
	return s.reconfig.State(ctx)
}

// ShowVideo starts or stops the recording.
func (s *Sink) ShowVideo(ctx context.Context, show bool) error {
	if show {
		return s.Start(ctx)
	}
	return s.Stop(ctx)
}

// The display related methods below are accepted for compatibility with
// display sinks and have no effect on a file.

func (s *Sink) SetLocalViewMode(ctx context.Context, mode int) error {
	return nil
}

func (s *Sink) EnableMirroring(ctx context.Context, enable bool) error {
	return nil
}

func (s *Sink) SetLocalViewScaleFactor(ctx context.Context, factor float64) error {
	return nil
}

func (s *Sink) SetBackgroundColor(ctx context.Context, c color.RGBA) error {
	return nil
}

func (s *Sink) NativeWindowID(ctx context.Context) (uintptr, error) {
	return 0, nil
}

func (s *Sink) SetNativeWindowID(ctx context.Context, id uintptr) error {
	return nil
}
