package pipeline

import (
	"context"
	"time"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultTickInterval = 10 * time.Millisecond
)

// Ticker advances an attached graph at a fixed cadence.
type Ticker struct {
	Interval time.Duration

	locker     xsync.Mutex
	graph      *Graph
	attachedAt time.Time
	count      uint64
}

func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		Interval: interval,
	}
}

// Attach initializes the graph if needed and preprocesses it; now is the
// reference point of Tick.Time.
func (t *Ticker) Attach(
	ctx context.Context,
	g *Graph,
	now time.Time,
) (_err error) {
	logger.Tracef(ctx, "Attach")
	defer func() { logger.Tracef(ctx, "/Attach: %v", _err) }()
	return xsync.DoR1(ctx, &t.locker, func() error {
		if t.graph != nil {
			return ErrAlreadyAttached{}
		}
		if !g.IsInitialized(ctx) {
			if err := g.Init(ctx); err != nil {
				return err
			}
		}
		t.graph = g
		t.attachedAt = now
		t.count = 0
		if err := g.preprocess(ctx, Tick{}); err != nil {
			logger.Errorf(ctx, "unable to preprocess: %v", err)
		}
		return nil
	})
}

// Detach postprocesses the graph and releases the frames left in its links.
// The graph stays initialized.
func (t *Ticker) Detach(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Detach")
	defer func() { logger.Tracef(ctx, "/Detach: %v", _err) }()
	return xsync.DoR1(ctx, &t.locker, func() error {
		g := t.graph
		if g == nil {
			return ErrNotAttached{}
		}
		t.graph = nil
		err := g.postprocess(ctx)
		g.Drain(ctx)
		return err
	})
}

// Step runs one tick with the given wall-clock time.
func (t *Ticker) Step(
	ctx context.Context,
	now time.Time,
) (Tick, error) {
	return xsync.DoR2(xsync.WithNoLogging(ctx, true), &t.locker, func() (Tick, error) {
		if t.graph == nil {
			return Tick{}, ErrNotAttached{}
		}
		t.count++
		tick := Tick{
			Time:  now.Sub(t.attachedAt),
			Count: t.count,
		}
		return tick, t.graph.Process(ctx, tick)
	})
}

// Serve ticks until ctx is done. Processing errors are logged and do not
// stop the ticker.
func (t *Ticker) Serve(ctx context.Context) error {
	logger.Debugf(ctx, "Serve: interval %v", t.Interval)
	defer logger.Debugf(ctx, "/Serve")
	timer := time.NewTicker(t.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			tick, err := t.Step(ctx, now)
			switch err.(type) {
			case nil:
			case ErrNotAttached:
				return err
			default:
				logger.Errorf(ctx, "%s: %v", tick, err)
			}
		}
	}
}
