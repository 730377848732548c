// Package worker manages a single background loop with idempotent start
// and a joining stop.
package worker

import (
	"context"
	"sync"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

type Worker struct {
	Name string

	locker   xsync.Mutex
	cancelFn context.CancelFunc
	wg       *sync.WaitGroup
}

func New(name string) *Worker {
	return &Worker{Name: name}
}

func (w *Worker) String() string {
	return w.Name
}

// Start launches fn in a goroutine unless it is already running. The
// context passed to fn is cancelled by Stop (and not by the cancellation
// of ctx). Returns false if the worker was already running.
func (w *Worker) Start(
	ctx context.Context,
	fn func(ctx context.Context),
) bool {
	logger.Tracef(ctx, "Start[%s]", w.Name)
	defer logger.Tracef(ctx, "/Start[%s]", w.Name)
	return xsync.DoR1(ctx, &w.locker, func() bool {
		if w.cancelFn != nil {
			logger.Debugf(ctx, "worker %s is already running", w.Name)
			return false
		}
		ctx, cancelFn := context.WithCancel(xcontext.DetachDone(ctx))
		wg := &sync.WaitGroup{}
		wg.Add(1)
		w.cancelFn = cancelFn
		w.wg = wg
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			logger.Debugf(ctx, "worker %s started", w.Name)
			defer logger.Debugf(ctx, "worker %s finished", w.Name)
			fn(ctx)
		})
		return true
	})
}

// Stop cancels the loop and waits for it to return. Returns false if
// the worker was not running.
func (w *Worker) Stop(ctx context.Context) bool {
	logger.Tracef(ctx, "Stop[%s]", w.Name)
	defer logger.Tracef(ctx, "/Stop[%s]", w.Name)
	cancelFn, wg := xsync.DoR2(ctx, &w.locker, func() (context.CancelFunc, *sync.WaitGroup) {
		cancelFn, wg := w.cancelFn, w.wg
		w.cancelFn, w.wg = nil, nil
		return cancelFn, wg
	})
	if cancelFn == nil {
		return false
	}
	cancelFn()
	wg.Wait()
	return true
}

func (w *Worker) IsRunning(ctx context.Context) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &w.locker, func() bool {
		return w.cancelFn != nil
	})
}
