package source

import (
	"context"

	"github.com/xaionaro-go/avfile/pipeline"
	"github.com/xaionaro-go/xsync"
)

var (
	_ pipeline.Filter        = (*Source)(nil)
	_ pipeline.Preprocessor  = (*Source)(nil)
	_ pipeline.Postprocessor = (*Source)(nil)
	_ pipeline.Locker        = (*Source)(nil)
)

// Init opens the configured file. An unopenable file is not an error for
// the pipeline: the source just produces nothing.
func (s *Source) Init(ctx context.Context) error {
	if s.Config.Path == "" {
		return nil
	}
	_ = s.openLocked(ctx, s.Config.Path, s.Config.Geometry)
	return nil
}

func (s *Source) Preprocess(ctx context.Context, tick pipeline.Tick) error {
	s.pacingLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		s.pacing.Reset()
		s.pacing.StartAt(tick.Time, s.frameRate.Load())
	})
	s.startLocked(ctx)
	return nil
}

func (s *Source) Process(
	ctx context.Context,
	tick pipeline.Tick,
	io pipeline.IO,
) error {
	frames := s.Produce(ctx, tick.Time)
	out := io.Output(0)
	for _, f := range frames {
		if out == nil {
			f.Release()
			continue
		}
		out.Put(ctx, f)
	}
	return nil
}

func (s *Source) Postprocess(ctx context.Context) error {
	s.worker.Stop(s.ctx(ctx))
	return nil
}

func (s *Source) Uninit(ctx context.Context) error {
	return s.closeLocked(ctx)
}
