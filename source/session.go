package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/types"
)

// session is everything opened for one file at one output geometry.
// While the decode loop runs, it is owned by the loop.
type session struct {
	path     string
	demuxer  codec.Demuxer
	stream   codec.StreamInfo
	decoder  codec.Decoder
	scaler   codec.Scaler
	target   types.PictureFormat
	registry *registry.Registry
	adapter  codec.Adapter

	registered bool

	// pictureAfterSeek is false if the end of the stream was reached
	// without a single picture since the last rewind.
	pictureAfterSeek bool
}

func openSession(
	ctx context.Context,
	reg *registry.Registry,
	adapter codec.Adapter,
	path string,
	geometry types.Geometry,
) (_ret *session, _err error) {
	logger.Tracef(ctx, "openSession(%s, %s)", path, geometry)
	defer func() { logger.Tracef(ctx, "/openSession(%s, %s): %v", path, geometry, _err) }()

	s := &session{
		path:     path,
		registry: reg,
		adapter:  adapter,
		target: types.PictureFormat{
			Geometry:    geometry,
			PixelFormat: types.PixelFormatCanonical,
		},
	}
	defer func() {
		if _err != nil {
			if err := s.close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the partially opened session: %v", err)
			}
		}
	}()

	demuxer, err := adapter.OpenForRead(ctx, path)
	if err != nil {
		return nil, asErrOpen(path, err)
	}
	s.demuxer = demuxer

	s.stream, err = demuxer.VideoStream(ctx)
	if err != nil {
		return nil, asErrOpen(path, err)
	}
	logger.Debugf(ctx, "selected %s", s.stream)

	err = reg.WithCodecLock(ctx, func() error {
		s.decoder, err = adapter.OpenDecoder(ctx, s.stream)
		return err
	})
	if err != nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to open the decoder: %w", err)}
	}

	s.scaler, err = adapter.BuildScaler(ctx, s.stream.Format, s.target)
	if err != nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to build the scaler: %w", err)}
	}
	reg.SessionOpened()
	s.registered = true
	return s, nil
}

func asErrOpen(path string, err error) error {
	var errOpen codec.ErrOpen
	if errors.As(err, &errOpen) {
		return err
	}
	return codec.ErrOpen{Path: path, Err: err}
}

func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.scaler != nil {
		if err := s.scaler.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the scaler: %w", err))
		}
		s.scaler = nil
	}
	if s.decoder != nil {
		if err := s.registry.WithCodecLock(ctx, func() error {
			return s.decoder.Close(ctx)
		}); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the decoder: %w", err))
		}
		s.decoder = nil
	}
	if s.registered {
		s.registered = false
		s.registry.SessionClosed()
	}
	if s.demuxer != nil {
		if err := s.demuxer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the demuxer: %w", err))
		}
		s.demuxer = nil
	}
	return errors.Join(errs...)
}

// decodePicture reads packets until one of the selected stream yields a
// picture. Returns io.EOF at the end of the stream.
func (s *session) decodePicture(ctx context.Context) (codec.Picture, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkt, err := s.demuxer.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, codec.ErrDecode{Err: fmt.Errorf("unable to read a packet: %w", err)}
		}
		if pkt.StreamIndex != s.stream.Index {
			continue
		}
		pic, err := s.decoder.Decode(ctx, pkt)
		switch {
		case err == nil:
			s.pictureAfterSeek = true
			return pic, nil
		case errors.Is(err, codec.ErrNeedMoreInput):
			continue
		default:
			return nil, asErrDecode(err)
		}
	}
}

func asErrDecode(err error) error {
	var errDecode codec.ErrDecode
	if errors.As(err, &errDecode) {
		return err
	}
	return codec.ErrDecode{Err: err}
}

// convert scales the picture into the canonical format, rebuilding the
// scaler if the decoder changed the picture layout mid-stream.
func (s *session) convert(ctx context.Context, pic codec.Picture) (*frame.Frame, error) {
	if src := pic.GetFormat(); s.scaler == nil || src != s.scaler.Source() {
		if s.scaler != nil {
			logger.Debugf(ctx, "the picture format changed %s -> %s, rebuilding the scaler", s.scaler.Source(), src)
			if err := s.scaler.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the scaler: %v", err)
			}
			s.scaler = nil
		}
		scaler, err := s.adapter.BuildScaler(ctx, src, s.target)
		if err != nil {
			return nil, codec.ErrScale{Err: err}
		}
		s.scaler = scaler
	}
	f, err := s.scaler.Scale(ctx, pic)
	if err != nil {
		var errScale codec.ErrScale
		if !errors.As(err, &errScale) {
			err = codec.ErrScale{Err: err}
		}
		return nil, err
	}
	return f, nil
}
