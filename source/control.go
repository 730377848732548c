package source

import (
	"context"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/types"
	"github.com/xaionaro-go/xsync"
)

// SetFrameRate changes the pacing rate starting from the next tick; the
// amount of already emitted frames is kept. A non-positive rate means
// one frame per tick.
func (s *Source) SetFrameRate(ctx context.Context, fps float64) error {
	logger.Debugf(s.ctx(ctx), "SetFrameRate(%v)", fps)
	s.frameRate.Store(fps)
	s.frameRateSet.Store(true)
	return nil
}

func (s *Source) FrameRate(ctx context.Context) (float64, error) {
	return s.frameRate.Load(), nil
}

// SetGeometry is SetOutputGeometry.
func (s *Source) SetGeometry(ctx context.Context, geometry types.Geometry) error {
	return s.SetOutputGeometry(ctx, geometry)
}

// SetOutputGeometry reopens the same file producing frames of the given
// geometry. The queued frames of the previous geometry are discarded and
// the pacing starts over.
func (s *Source) SetOutputGeometry(ctx context.Context, geometry types.Geometry) error {
	logger.Debugf(s.ctx(ctx), "SetOutputGeometry(%s)", geometry)
	return xsync.DoR1(ctx, &s.filterLocker, func() error {
		if geometry.Equal(s.geometry) && s.session != nil {
			return nil
		}
		return s.openLocked(ctx, s.path, geometry)
	})
}

func (s *Source) Geometry(ctx context.Context) (types.Geometry, error) {
	return xsync.DoR1(ctx, &s.filterLocker, func() types.Geometry {
		return s.geometry
	}), nil
}

func (s *Source) PixelFormat(ctx context.Context) (types.PixelFormat, error) {
	return types.PixelFormatCanonical, nil
}
