// Package dummy is an in-memory implementation of codec.Adapter: "files"
// are registered synthetic clips, and everything written is recorded for
// inspection. It needs no media library, which makes it handy in tests.
package dummy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/scaler"
	"github.com/xaionaro-go/avfile/types"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Clip is a synthetic video file.
type Clip struct {
	Format    types.PictureFormat
	FrameRate types.Rational
	Frames    int

	// WithAudio interleaves a non-video packet before every picture and
	// puts an audio stream first in the stream list.
	WithAudio bool
}

// Failures scripts errors returned by the adapter; nil means success.
type Failures struct {
	OpenForWrite error
	OpenEncoder  error
	OpenDecoder  error
	BuildScaler  error
	WriteHeader  error
	Seek         error

	// The per-frame failures.
	ReadPacket  error
	Decode      error
	Scale       error
	Encode      error
	WritePacket error

	// Every makes a per-frame failure hit only the 1st, (Every+1)-th,
	// (2*Every+1)-th, ... call of the operation; 0 means every call.
	Every int
}

type perFrameOp int

const (
	perFrameOpReadPacket = perFrameOp(iota)
	perFrameOpDecode
	perFrameOpScale
	perFrameOpEncode
	perFrameOpWritePacket
	endOfPerFrameOp
)

func (f Failures) perFrame(op perFrameOp) error {
	switch op {
	case perFrameOpReadPacket:
		return f.ReadPacket
	case perFrameOpDecode:
		return f.Decode
	case perFrameOpScale:
		return f.Scale
	case perFrameOpEncode:
		return f.Encode
	case perFrameOpWritePacket:
		return f.WritePacket
	default:
		return nil
	}
}

type Adapter struct {
	locker     xsync.Mutex
	clips      map[string]Clip
	recordings map[string]*Recording
	failures   Failures
	calls      [endOfPerFrameOp]uint64

	// EncoderDelay is the amount of frames an encoder holds before it
	// starts emitting packets (only flushing gets them out at the end).
	EncoderDelay int

	openHandles    atomic.Int64
	encodersOpened atomic.Int64
	decodersOpened atomic.Int64
}

var _ codec.Adapter = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{
		clips:      map[string]Clip{},
		recordings: map[string]*Recording{},
	}
}

func (a *Adapter) String() string {
	return "dummy"
}

// AddClip registers a synthetic file at the given path.
func (a *Adapter) AddClip(path string, clip Clip) {
	a.locker.Do(context.Background(), func() {
		a.clips[path] = clip
	})
}

// SetFailures replaces the scripted failures and restarts the call
// counting of Failures.Every.
func (a *Adapter) SetFailures(f Failures) {
	a.locker.Do(context.Background(), func() {
		a.failures = f
		a.calls = [endOfPerFrameOp]uint64{}
	})
}

// failPerFrame returns the error the current call of op must fail with.
func (a *Adapter) failPerFrame(op perFrameOp) error {
	return xsync.DoR1(context.Background(), &a.locker, func() error {
		err := a.failures.perFrame(op)
		if err == nil {
			return nil
		}
		call := a.calls[op]
		a.calls[op]++
		if a.failures.Every > 1 && call%uint64(a.failures.Every) != 0 {
			return nil
		}
		return err
	})
}

func (a *Adapter) getFailures() Failures {
	return xsync.DoR1(context.Background(), &a.locker, func() Failures {
		return a.failures
	})
}

// Recording returns what was written to the given path (nil if nothing).
func (a *Adapter) Recording(path string) *Recording {
	return xsync.DoR1(context.Background(), &a.locker, func() *Recording {
		return a.recordings[path]
	})
}

// Recordings returns the paths of all the files written so far.
func (a *Adapter) Recordings() []string {
	return xsync.DoR1(context.Background(), &a.locker, func() []string {
		result := make([]string, 0, len(a.recordings))
		for path := range a.recordings {
			result = append(result, path)
		}
		return result
	})
}

// OpenHandles is the amount of demuxers, decoders, encoders, scalers and
// muxers not closed yet.
func (a *Adapter) OpenHandles() int64 {
	return a.openHandles.Load()
}

func (a *Adapter) EncodersOpened() int64 {
	return a.encodersOpened.Load()
}

func (a *Adapter) DecodersOpened() int64 {
	return a.decodersOpened.Load()
}

func (a *Adapter) OpenForRead(
	ctx context.Context,
	path string,
) (_ret codec.Demuxer, _err error) {
	logger.Tracef(ctx, "OpenForRead(%s)", path)
	defer func() { logger.Tracef(ctx, "/OpenForRead(%s): %v", path, _err) }()
	clip, ok := xsync.DoR2(ctx, &a.locker, func() (Clip, bool) {
		clip, ok := a.clips[path]
		return clip, ok
	})
	if !ok {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("no such file")}
	}
	if clip.Frames <= 0 {
		return nil, codec.ErrOpen{Path: path, Err: codec.ErrNoVideoStream}
	}
	a.openHandles.Inc()
	return &demuxer{adapter: a, clip: clip}, nil
}

func (a *Adapter) OpenDecoder(
	ctx context.Context,
	stream codec.StreamInfo,
) (codec.Decoder, error) {
	if err := a.getFailures().OpenDecoder; err != nil {
		return nil, err
	}
	clip, ok := stream.Native.(Clip)
	if !ok {
		return nil, fmt.Errorf("the stream %s does not belong to this adapter", stream)
	}
	a.openHandles.Inc()
	a.decodersOpened.Inc()
	return &decoder{adapter: a, clip: clip}, nil
}

func (a *Adapter) OpenEncoder(
	ctx context.Context,
	params codec.EncoderParams,
) (codec.Encoder, error) {
	if err := a.getFailures().OpenEncoder; err != nil {
		return nil, err
	}
	if params.Geometry.IsZero() {
		return nil, fmt.Errorf("invalid geometry %s", params.Geometry)
	}
	if params.CodecName != codec.CodecNameMPEG4 {
		return nil, fmt.Errorf("encoder '%s' not found", params.CodecName)
	}
	a.openHandles.Inc()
	a.encodersOpened.Inc()
	return &encoder{adapter: a, params: params, delay: a.EncoderDelay}, nil
}

func (a *Adapter) BuildScaler(
	ctx context.Context,
	src, dst types.PictureFormat,
) (codec.Scaler, error) {
	if err := a.getFailures().BuildScaler; err != nil {
		return nil, err
	}
	s, err := scaler.New(src, dst, transform.Linear)
	if err != nil {
		return nil, err
	}
	a.openHandles.Inc()
	return &closeCounting{Scaler: s, adapter: a}, nil
}

var knownContainers = map[string]string{
	"mp4": "mp4",
	"mkv": "matroska",
	"avi": "avi",
	"mpg": "mpeg",
	"ts":  "mpegts",
}

func (a *Adapter) OpenForWrite(
	ctx context.Context,
	path string,
	formatHint string,
) (_ret codec.Muxer, _err error) {
	logger.Tracef(ctx, "OpenForWrite(%s, %s)", path, formatHint)
	defer func() { logger.Tracef(ctx, "/OpenForWrite(%s, %s): %v", path, formatHint, _err) }()
	if err := a.getFailures().OpenForWrite; err != nil {
		return nil, codec.ErrOpen{Path: path, Err: err}
	}
	container, ok := knownContainers[strings.TrimPrefix(filepath.Ext(path), ".")]
	if !ok {
		for _, name := range knownContainers {
			if name == formatHint {
				container, ok = name, true
			}
		}
	}
	if !ok {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to deduce the output format")}
	}
	rec := &Recording{Path: path, Container: container}
	a.locker.Do(ctx, func() {
		a.recordings[path] = rec
	})
	a.openHandles.Inc()
	return &muxer{adapter: a, recording: rec}, nil
}

type closeCounting struct {
	codec.Scaler
	adapter *Adapter
	closed  atomic.Bool
}

func (s *closeCounting) Scale(ctx context.Context, pic codec.Picture) (*frame.Frame, error) {
	if err := s.adapter.failPerFrame(perFrameOpScale); err != nil {
		return nil, codec.ErrScale{Err: err}
	}
	return s.Scaler.Scale(ctx, pic)
}

func (s *closeCounting) Close(ctx context.Context) error {
	if !s.closed.Swap(true) {
		s.adapter.openHandles.Dec()
	}
	return s.Scaler.Close(ctx)
}
