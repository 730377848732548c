// Package registry holds the process-wide state shared by all the endpoints:
// the lock serializing codec context construction/destruction and the
// sequence used to name output files.
package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type Registry struct {
	codecLocker  xsync.Mutex
	fileSequence atomic.Uint64
	sessionCount atomic.Int64
}

// New returns a registry; the first file sequence number is 0.
func New() *Registry {
	return &Registry{}
}

// WithCodecLock runs fn while holding the process-wide codec lock.
// The codec library is not assumed to be thread-safe when opening or
// closing a codec context; the actual encoding/decoding is not covered.
func (r *Registry) WithCodecLock(
	ctx context.Context,
	fn func() error,
) (_err error) {
	logger.Tracef(ctx, "WithCodecLock")
	defer func() { logger.Tracef(ctx, "/WithCodecLock: %v", _err) }()
	return xsync.DoR1(ctx, &r.codecLocker, fn)
}

// NextSequence returns the next output file sequence number.
func (r *Registry) NextSequence() uint64 {
	return r.fileSequence.Add(1) - 1
}

// NextFilePath builds "<dir>/<base>.<seq>.<ext>" with a fresh sequence
// number, so distinct sinks never overwrite each other's file within the
// lifetime of the registry.
func (r *Registry) NextFilePath(dir, base, ext string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%d.%s", base, r.NextSequence(), ext))
}

// SessionOpened and SessionClosed track the amount of live stream
// sessions (for diagnostics and leak checks in tests).
func (r *Registry) SessionOpened() {
	r.sessionCount.Inc()
}

func (r *Registry) SessionClosed() {
	r.sessionCount.Dec()
}

func (r *Registry) LiveSessions() int64 {
	return r.sessionCount.Load()
}
