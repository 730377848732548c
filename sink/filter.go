package sink

import (
	"context"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/pipeline"
	"github.com/xaionaro-go/xsync"
)

var (
	_ pipeline.Filter = (*Sink)(nil)
	_ pipeline.Locker = (*Sink)(nil)
)

// Init starts the recording unless Config.ManualStart is set. A failure
// to prepare is not an error for the pipeline: the frames are dropped.
func (s *Sink) Init(ctx context.Context) error {
	if s.Config.ManualStart {
		return nil
	}
	_ = s.startLocked(ctx)
	return nil
}

// Process performs a pending restart and then takes every frame of the
// input pin 0; frames arriving on other pins are dropped.
func (s *Sink) Process(
	ctx context.Context,
	tick pipeline.Tick,
	io pipeline.IO,
) error {
	if err := s.reconfig.Step(ctx, s.restartLocked); err != nil {
		logger.Errorf(s.ctx(ctx), "unable to restart: %v", err)
	}
	for pin, in := range io.Inputs {
		if in == nil {
			continue
		}
		for f := in.Get(ctx); f != nil; f = in.Get(ctx) {
			if pin != 0 {
				s.stats.DroppedInput.Inc()
				f.Release()
				continue
			}
			s.Consume(ctx, f)
		}
	}
	return nil
}

func (s *Sink) Uninit(ctx context.Context) error {
	return s.stopLocked(ctx)
}

// Reconfigure performs the pending restart, if any, the way the tick
// processing does.
func (s *Sink) Reconfigure(ctx context.Context) error {
	return xsync.DoR1(ctx, &s.filterLocker, func() error {
		return s.reconfig.Step(ctx, s.restartLocked)
	})
}
