// Package internal contains helpers shared by the media library bindings.
package internal

import (
	"context"
	"runtime"

	"github.com/xaionaro-go/avfile/logger"
)

// SetFinalizerFree frees the C-side object when the Go-side handle is
// collected.
func SetFinalizerFree[T interface{ Free() }](
	ctx context.Context,
	freer T,
) {
	runtime.SetFinalizer(freer, func(freer T) {
		logger.Tracef(ctx, "freeing %T", freer)
		freer.Free()
	})
}

// ClearFinalizer is used when the object is freed explicitly.
func ClearFinalizer[T any](obj T) {
	runtime.SetFinalizer(obj, nil)
}
