package logger

import (
	"context"

	"github.com/xaionaro-go/xsync"
)

// OnceReporter logs an error only the first time it is seen until Reset is
// called; used for failures that leave an endpoint inert and must not be
// repeated on every tick.
type OnceReporter struct {
	locker   xsync.Mutex
	reported map[string]struct{}
}

// Errorf logs the message unless the same key was already reported.
// Returns true if the message was logged.
func (r *OnceReporter) Errorf(ctx context.Context, key string, format string, args ...any) bool {
	isNew := xsync.DoR1(xsync.WithNoLogging(ctx, true), &r.locker, func() bool {
		if _, ok := r.reported[key]; ok {
			return false
		}
		if r.reported == nil {
			r.reported = map[string]struct{}{}
		}
		r.reported[key] = struct{}{}
		return true
	})
	if isNew {
		Errorf(ctx, format, args...)
	}
	return isNew
}

func (r *OnceReporter) Reset(ctx context.Context) {
	r.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		r.reported = nil
	})
}
