// Package source implements FrameSource: it decodes a stored video file in
// a background loop and releases the frames to the pipeline at the pace
// of the configured frame rate, looping at the end of the file.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/indicator"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/queue"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/types"
	"github.com/xaionaro-go/avfile/worker"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type Source struct {
	Config   Config
	registry *registry.Registry
	adapter  codec.Adapter

	// filterLocker serializes the tick processing with the control
	// methods that rebuild the session.
	filterLocker xsync.Mutex

	// The fields below are guarded by filterLocker.
	session  *session
	path     string
	geometry types.Geometry
	openErr  error

	frameRate    atomic.Float64
	frameRateSet atomic.Bool
	queue        *queue.Queue[*frame.Frame]
	worker       *worker.Worker
	pacingLocker xsync.Mutex
	pacing       PacingClock
	reporter     logger.OnceReporter
	stats        stats
	decodeTime   *indicator.MAMA[time.Duration]
}

// New returns an inert source; call Open (or let the pipeline call Init)
// to open the file.
func New(
	reg *registry.Registry,
	adapter codec.Adapter,
	cfg Config,
) *Source {
	cfg = cfg.withDefaults()
	s := &Source{
		Config:   cfg,
		registry: reg,
		adapter:  adapter,
		path:     cfg.Path,
		geometry: cfg.Geometry,
		queue:    queue.New[*frame.Frame](),
		worker:   worker.New("decode"),

		decodeTime: indicator.NewMAMADefault[time.Duration](timeWindow),
	}
	if cfg.FrameRate > 0 {
		s.frameRate.Store(cfg.FrameRate)
		s.frameRateSet.Store(true)
	}
	return s
}

func (s *Source) String() string {
	return fmt.Sprintf("FileSource(%s)", s.Config.Path)
}

func (s *Source) FilterLocker() *xsync.Mutex {
	return &s.filterLocker
}

func (s *Source) ctx(ctx context.Context) context.Context {
	return logger.WithEndpoint(ctx, "source", s.Config.Path)
}

// Open closes the current session (if any) and opens the file. On failure
// the source stays inert: the error is reported once and Start does nothing.
func (s *Source) Open(
	ctx context.Context,
	path string,
	geometry types.Geometry,
) error {
	return xsync.DoA3R1(ctx, &s.filterLocker, s.openLocked, ctx, path, geometry)
}

func (s *Source) openLocked(
	ctx context.Context,
	path string,
	geometry types.Geometry,
) (_err error) {
	ctx = s.ctx(ctx)
	logger.Tracef(ctx, "open(%s, %s)", path, geometry)
	defer func() { logger.Tracef(ctx, "/open(%s, %s): %v", path, geometry, _err) }()
	if geometry.IsZero() {
		geometry = s.Config.Geometry
	}

	wasRunning := s.worker.Stop(ctx)
	s.closeSessionLocked(ctx)
	s.path, s.geometry = path, geometry
	s.resetPacing(ctx)

	sess, err := openSession(ctx, s.registry, s.adapter, path, geometry)
	if err != nil {
		s.openErr = err
		s.reporter.Errorf(ctx, path, "unable to open '%s': %v", path, err)
		return err
	}
	s.openErr = nil
	s.reporter.Reset(ctx)
	s.session = sess
	if !s.frameRateSet.Load() {
		fps := sess.stream.FrameRate()
		if fps <= 0 {
			fps = DefaultFrameRate
		}
		s.frameRate.Store(fps)
	}
	logger.Debugf(ctx, "opened %s: %s -> %s @ %v fps", path, sess.stream.Format, sess.target, s.frameRate.Load())
	if wasRunning {
		s.startLocked(ctx)
	}
	return nil
}

// OpenError is the reason the source is inert, if it is.
func (s *Source) OpenError(ctx context.Context) error {
	return xsync.DoR1(ctx, &s.filterLocker, func() error {
		return s.openErr
	})
}

// Close stops the decode loop and closes the file.
func (s *Source) Close(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &s.filterLocker, s.closeLocked, ctx)
}

func (s *Source) closeLocked(ctx context.Context) error {
	ctx = s.ctx(ctx)
	s.worker.Stop(ctx)
	return s.closeSessionLocked(ctx)
}

// closeSessionLocked expects the decode loop to be stopped.
func (s *Source) closeSessionLocked(ctx context.Context) error {
	s.discardQueue(ctx)
	if s.session == nil {
		return nil
	}
	err := s.session.close(ctx)
	s.session = nil
	if err != nil {
		logger.Errorf(ctx, "unable to close the session: %v", err)
	}
	return err
}

func (s *Source) discardQueue(ctx context.Context) {
	frames := s.queue.Flush(ctx)
	for _, f := range frames {
		f.Release()
	}
	if len(frames) > 0 {
		logger.Debugf(ctx, "discarded %d queued frames", len(frames))
		s.stats.Discarded.Add(uint64(len(frames)))
	}
}

func (s *Source) resetPacing(ctx context.Context) {
	s.pacingLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		s.pacing.Reset()
	})
}

// Start launches the decode loop; does nothing if it is already running
// or if the source is inert.
func (s *Source) Start(ctx context.Context) {
	s.filterLocker.Do(ctx, func() {
		s.startLocked(ctx)
	})
}

func (s *Source) startLocked(ctx context.Context) {
	ctx = s.ctx(ctx)
	sess := s.session
	if sess == nil {
		logger.Debugf(ctx, "the source is inert, not starting the decode loop")
		return
	}
	s.worker.Start(ctx, func(ctx context.Context) {
		s.decodeLoop(ctx, sess)
	})
}

// Stop stops the decode loop and waits for it to finish.
func (s *Source) Stop(ctx context.Context) {
	s.worker.Stop(s.ctx(ctx))
}

func (s *Source) IsRunning(ctx context.Context) bool {
	return s.worker.IsRunning(ctx)
}

func (s *Source) decodeLoop(ctx context.Context, sess *session) {
	// failing is set while no picture was decoded since the last failure.
	failing := false
	for {
		if ctx.Err() != nil {
			return
		}
		if !s.queue.WaitLenBelow(ctx, s.Config.QueueSoftCap, s.Config.BackpressurePoll) {
			continue
		}
		startedAt := time.Now()
		f, err := s.decodeFrame(ctx, sess)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, io.EOF):
			s.rewind(ctx, sess)
			continue
		default:
			s.stats.Dropped.Inc()
			logger.Errorf(ctx, "%v", err)
			if failing {
				sleep(ctx, s.Config.BackpressurePoll)
			}
			failing = true
			continue
		}
		failing = false
		f.Marker = true
		s.decodeTime.Update(time.Since(startedAt))
		s.stats.Decoded.Inc()
		s.stats.DecodedBytes.Add(uint64(f.Size()))
		s.queue.Push(ctx, f)
	}
}

func (s *Source) decodeFrame(ctx context.Context, sess *session) (*frame.Frame, error) {
	pic, err := sess.decodePicture(ctx)
	if err != nil {
		return nil, err
	}
	defer pic.Release()
	return sess.convert(ctx, pic)
}

// rewind seeks to the beginning of the file. A failure is reported and the
// reading continues wherever the position is.
func (s *Source) rewind(ctx context.Context, sess *session) {
	logger.Debugf(ctx, "end of stream, rewinding")
	idle := !sess.pictureAfterSeek
	sess.pictureAfterSeek = false
	s.stats.Rewinds.Inc()
	if err := sess.demuxer.SeekToStart(ctx); err != nil {
		var errSeek codec.ErrSeek
		if !errors.As(err, &errSeek) {
			err = codec.ErrSeek{Err: err}
		}
		s.stats.SeekFailures.Inc()
		logger.Errorf(ctx, "%v", err)
		idle = true
	}
	if idle {
		// nothing to decode right now, do not spin
		sleep(ctx, s.Config.BackpressurePoll)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Produce dequeues the frames that are due at tick time now (since the
// ticker attached) and stamps them with the pipeline clock. It never
// blocks; if the queue is empty nothing is produced.
func (s *Source) Produce(
	ctx context.Context,
	now time.Duration,
) []*frame.Frame {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.pacingLocker, func() []*frame.Frame {
		due := s.pacing.Due(now, s.frameRate.Load(), s.Config.MaxFramesPerTick)
		if due <= 0 {
			return nil
		}
		ts := uint32(now.Milliseconds() * (frame.ClockRate / 1000))
		var result []*frame.Frame
		for ; due > 0; due-- {
			f, ok := s.queue.TryPop(ctx)
			if !ok {
				s.stats.Starved.Inc()
				break
			}
			f.Timestamp = ts
			s.pacing.MarkEmitted()
			s.stats.Emitted.Inc()
			result = append(result, f)
		}
		return result
	})
}

// Emitted is the amount of frames produced since the session (re)started.
func (s *Source) Emitted(ctx context.Context) uint64 {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.pacingLocker, func() uint64 {
		return s.pacing.Emitted()
	})
}

// QueueLen is the amount of decoded frames waiting for their tick.
func (s *Source) QueueLen(ctx context.Context) int {
	return s.queue.Len(ctx)
}

func (s *Source) Stats(ctx context.Context) Stats {
	return Stats{
		Decoded:      s.stats.Decoded.Load(),
		DecodedBytes: s.stats.DecodedBytes.Load(),
		Dropped:      s.stats.Dropped.Load(),
		Discarded:    s.stats.Discarded.Load(),
		Emitted:      s.stats.Emitted.Load(),
		Starved:      s.stats.Starved.Load(),
		Rewinds:      s.stats.Rewinds.Load(),
		SeekFailures: s.stats.SeekFailures.Load(),
		Queued:       s.queue.Len(ctx),
		DecodeTime:   s.decodeTime.Value(),
	}
}
