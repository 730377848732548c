// Package sink implements FrameSink: it takes the frames from the pipeline
// without blocking and encodes them into a file in a background loop,
// restarting the file session when the geometry of the stream changes.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
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

type Sink struct {
	Config   Config
	registry *registry.Registry
	adapter  codec.Adapter

	// filterLocker serializes the tick processing with the control
	// methods that restart the sink.
	filterLocker xsync.Mutex

	// sessionLocker is held by the encode loop while processing a frame,
	// and by whoever opens or closes the session.
	sessionLocker xsync.Mutex
	session       *session
	wished        types.Geometry
	paths         []string

	running  atomic.Bool
	autoFit  atomic.Bool
	queue    *queue.Queue[*frame.Frame]
	worker   *worker.Worker
	reconfig reconfigurator
	reporter logger.OnceReporter
	stats    stats

	encodeTime *indicator.MAMA[time.Duration]
}

func New(
	reg *registry.Registry,
	adapter codec.Adapter,
	cfg Config,
) *Sink {
	cfg = cfg.withDefaults()
	s := &Sink{
		Config:   cfg,
		registry: reg,
		adapter:  adapter,
		wished:   cfg.Geometry,
		queue:    queue.New[*frame.Frame](),
		worker:   worker.New("encode"),

		encodeTime: indicator.NewMAMADefault[time.Duration](timeWindow),
	}
	s.autoFit.Store(cfg.AutoFit)
	return s
}

func (s *Sink) String() string {
	return fmt.Sprintf("FileSink(%s/%s.*.%s)", s.Config.Directory, s.Config.BaseName, s.Config.Extension)
}

func (s *Sink) FilterLocker() *xsync.Mutex {
	return &s.filterLocker
}

func (s *Sink) ctx(ctx context.Context) context.Context {
	return logger.WithEndpoint(ctx, "sink", s.Config.BaseName)
}

// IsReady is true if a session is prepared.
func (s *Sink) IsReady(ctx context.Context) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.sessionLocker, func() bool {
		return s.session != nil
	})
}

// Path returns the file of the current (or the last) session.
func (s *Sink) Path(ctx context.Context) string {
	return xsync.DoR1(ctx, &s.sessionLocker, func() string {
		if len(s.paths) == 0 {
			return ""
		}
		return s.paths[len(s.paths)-1]
	})
}

// Paths returns every file written by the sink, the oldest first.
func (s *Sink) Paths(ctx context.Context) []string {
	return xsync.DoR1(ctx, &s.sessionLocker, func() []string {
		return append([]string(nil), s.paths...)
	})
}

// Prepare opens a new file at the wished geometry. Does nothing if already
// prepared. On failure the sink stays not ready and drops the frames.
func (s *Sink) Prepare(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &s.sessionLocker, s.prepareLocked, s.ctx(ctx))
}

func (s *Sink) prepareLocked(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "prepare")
	defer func() { logger.Tracef(ctx, "/prepare: %v", _err) }()
	if s.session != nil {
		return nil
	}
	path := s.registry.NextFilePath(s.Config.Directory, s.Config.BaseName, s.Config.Extension)
	sess, err := openSession(ctx, s.registry, s.adapter, path, s.Config.FormatHint, s.wished, s.Config.FrameRate)
	if err != nil {
		s.reporter.Errorf(ctx, "prepare", "unable to prepare the sink: %v", err)
		return err
	}
	s.reporter.Reset(ctx)
	sess.onWrite = func(pkt *codec.Packet) {
		s.stats.Packets.Inc()
		s.stats.Bytes.Add(uint64(len(pkt.Data)))
	}
	s.session = sess
	s.paths = append(s.paths, path)
	logger.Debugf(ctx, "recording into %s at %s, %s/s", path, s.wished, humanize.SI(float64(BitRateFor(s.wished)), "bit"))
	return nil
}

// Unprepare finalizes the file: the frames still queued are encoded, the
// encoder is flushed and the trailer is written. Does nothing if not
// prepared.
func (s *Sink) Unprepare(ctx context.Context) error {
	return xsync.DoA2R1(ctx, &s.sessionLocker, s.unprepareLocked, s.ctx(ctx), true)
}

func (s *Sink) unprepareLocked(ctx context.Context, drain bool) (_err error) {
	logger.Tracef(ctx, "unprepare(%t)", drain)
	defer func() { logger.Tracef(ctx, "/unprepare(%t): %v", drain, _err) }()
	if s.session == nil {
		if drain {
			s.discardQueue(ctx)
		}
		return nil
	}
	if drain {
		for _, f := range s.queue.Flush(ctx) {
			s.encodeLocked(ctx, f)
		}
	}
	sess := s.session
	s.session = nil
	err := sess.close(ctx)
	if err != nil {
		logger.Errorf(ctx, "unable to finalize %s: %v", sess.path, err)
	}
	return err
}

func (s *Sink) discardQueue(ctx context.Context) {
	frames := s.queue.Flush(ctx)
	for _, f := range frames {
		f.Release()
	}
	if len(frames) > 0 {
		s.stats.DroppedNotReady.Add(uint64(len(frames)))
	}
}

// Start prepares the sink and launches the encode loop; does nothing if
// already running.
func (s *Sink) Start(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &s.filterLocker, s.startLocked, ctx)
}

func (s *Sink) startLocked(ctx context.Context) error {
	ctx = s.ctx(ctx)
	if s.worker.IsRunning(ctx) {
		return nil
	}
	err := s.Prepare(ctx)
	s.running.Store(true)
	s.worker.Start(ctx, s.encodeLoop)
	return err
}

// Stop stops the encode loop and finalizes the file.
func (s *Sink) Stop(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &s.filterLocker, s.stopLocked, ctx)
}

func (s *Sink) stopLocked(ctx context.Context) error {
	ctx = s.ctx(ctx)
	s.running.Store(false)
	s.worker.Stop(ctx)
	s.reconfig.Cancel(ctx)
	return s.Unprepare(ctx)
}

// restartLocked rebuilds the session at the given geometry. The frames
// queued at the moment are kept for the new session.
func (s *Sink) restartLocked(ctx context.Context, geometry types.Geometry) error {
	ctx = s.ctx(ctx)
	isSame := xsync.DoR1(ctx, &s.sessionLocker, func() bool {
		return s.session != nil && s.session.geometry.Equal(geometry)
	})
	if isSame {
		logger.Debugf(ctx, "the session is already at %s", geometry)
		return nil
	}
	wasRunning := s.worker.Stop(ctx)
	var errs []error
	s.sessionLocker.Do(ctx, func() {
		if err := s.unprepareLocked(ctx, false); err != nil {
			errs = append(errs, err)
		}
		s.wished = geometry
		if err := s.prepareLocked(ctx); err != nil {
			errs = append(errs, err)
		}
	})
	s.stats.Restarts.Inc()
	if wasRunning {
		s.worker.Start(ctx, s.encodeLoop)
	}
	return errors.Join(errs...)
}

func (s *Sink) IsRunning(ctx context.Context) bool {
	return s.running.Load()
}

// Consume hands the frame over to the encode loop. It never blocks. If
// the sink is not running the frame is released.
func (s *Sink) Consume(ctx context.Context, f *frame.Frame) {
	if !s.running.Load() {
		s.stats.DroppedNotRunning.Inc()
		f.Release()
		return
	}
	s.stats.Consumed.Inc()
	if s.Config.QueueLimit <= 0 {
		s.queue.Push(ctx, f)
		return
	}
	dropped := s.queue.PushBounded(ctx, f, s.Config.QueueLimit)
	for _, f := range dropped {
		f.Release()
	}
	if len(dropped) > 0 {
		s.stats.DroppedOverflow.Add(uint64(len(dropped)))
	}
}

// QueueLen is the amount of frames waiting for the encoder.
func (s *Sink) QueueLen(ctx context.Context) int {
	return s.queue.Len(ctx)
}

func (s *Sink) encodeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		f, ok := s.queue.PopWait(ctx, s.Config.QueuePoll)
		if !ok {
			continue
		}
		s.sessionLocker.Do(xsync.WithNoLogging(ctx, true), func() {
			s.encodeLocked(ctx, f)
		})
	}
}

// encodeLocked processes one frame and releases it.
func (s *Sink) encodeLocked(ctx context.Context, f *frame.Frame) {
	defer f.Release()
	sess := s.session
	if sess == nil {
		s.stats.DroppedNotReady.Inc()
		return
	}
	if !f.Geometry.Equal(sess.observed) {
		logger.Debugf(ctx, "the input geometry changed: %s -> %s", sess.observed, f.Geometry)
		sess.observed = f.Geometry
		if s.autoFit.Load() {
			s.reconfig.RequestRestart(ctx, f.Geometry)
		}
	}
	if src := f.GetFormat(); sess.scaler == nil || src != sess.scaler.Source() {
		if sess.scaler != nil {
			logger.Debugf(ctx, "the input format changed: %s -> %s", sess.scaler.Source(), src)
		}
		if err := sess.rebuildScaler(ctx, src); err != nil {
			s.stats.Failed.Inc()
			logger.Errorf(ctx, "%v", err)
			return
		}
	}
	startedAt := time.Now()
	err := sess.encode(ctx, f)
	s.encodeTime.Update(time.Since(startedAt))
	s.stats.Encoded.Inc()
	if err != nil {
		s.stats.Failed.Inc()
		logger.Errorf(ctx, "%v", err)
	}
}

func (s *Sink) Stats(ctx context.Context) Stats {
	return Stats{
		Consumed:          s.stats.Consumed.Load(),
		Encoded:           s.stats.Encoded.Load(),
		Failed:            s.stats.Failed.Load(),
		Packets:           s.stats.Packets.Load(),
		Bytes:             s.stats.Bytes.Load(),
		DroppedNotReady:   s.stats.DroppedNotReady.Load(),
		DroppedNotRunning: s.stats.DroppedNotRunning.Load(),
		DroppedOverflow:   s.stats.DroppedOverflow.Load(),
		DroppedInput:      s.stats.DroppedInput.Load(),
		Restarts:          s.stats.Restarts.Load(),
		Queued:            s.queue.Len(ctx),
		EncodeTime:        s.encodeTime.Value(),
	}
}
