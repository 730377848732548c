package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/registry"
	"github.com/xaionaro-go/avfile/types"
)

// session is one output file with its encoder.
type session struct {
	path     string
	muxer    codec.Muxer
	encoder  codec.Encoder
	scaler   codec.Scaler
	registry *registry.Registry
	adapter  codec.Adapter

	// geometry is what the encoder was opened with; observed is the
	// geometry of the last frame seen.
	geometry types.Geometry
	observed types.Geometry

	// index is the presentation index of the next frame.
	index int64

	headerWritten bool
	registered    bool

	// onWrite is called for every packet written into the file.
	onWrite func(pkt *codec.Packet)
}

func openSession(
	ctx context.Context,
	reg *registry.Registry,
	adapter codec.Adapter,
	path string,
	formatHint string,
	geometry types.Geometry,
	fps float64,
) (_ret *session, _err error) {
	logger.Tracef(ctx, "openSession(%s, %s)", path, geometry)
	defer func() { logger.Tracef(ctx, "/openSession(%s, %s): %v", path, geometry, _err) }()

	s := &session{
		path:     path,
		registry: reg,
		adapter:  adapter,
		geometry: geometry,
		observed: geometry,
	}
	defer func() {
		if _err != nil {
			if err := s.close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the partially opened session: %v", err)
			}
		}
	}()

	muxer, err := adapter.OpenForWrite(ctx, path, formatHint)
	if err != nil {
		var errOpen codec.ErrOpen
		if !errors.As(err, &errOpen) {
			err = codec.ErrOpen{Path: path, Err: err}
		}
		return nil, err
	}
	s.muxer = muxer

	params := codec.DefaultEncoderParams(geometry, BitRateFor(geometry))
	if fps > 0 && fps != codec.DefaultEncoderFPSBase {
		params.FrameRate = types.RationalFromApproxFloat64(fps)
		params.TimeBase = params.FrameRate.Reverse()
	}
	params.GlobalHeader = muxer.NeedsGlobalHeader()
	err = reg.WithCodecLock(ctx, func() error {
		s.encoder, err = adapter.OpenEncoder(ctx, params)
		return err
	})
	if err != nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to open the encoder %s: %w", params, err)}
	}

	if err := muxer.AddVideoStream(ctx, s.encoder); err != nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to add the stream: %w", err)}
	}
	if err := muxer.WriteHeader(ctx); err != nil {
		return nil, codec.ErrOpen{Path: path, Err: fmt.Errorf("unable to write the header: %w", err)}
	}
	s.headerWritten = true

	canonical := types.PictureFormat{Geometry: geometry, PixelFormat: types.PixelFormatCanonical}
	if err := s.rebuildScaler(ctx, canonical); err != nil {
		return nil, codec.ErrOpen{Path: path, Err: err}
	}
	reg.SessionOpened()
	s.registered = true
	logger.Debugf(ctx, "opened %s: %s", path, params)
	return s, nil
}

func (s *session) rebuildScaler(ctx context.Context, src types.PictureFormat) error {
	if s.scaler != nil {
		if err := s.scaler.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the scaler: %v", err)
		}
		s.scaler = nil
	}
	params := s.encoder.Params()
	scaler, err := s.adapter.BuildScaler(ctx, src, types.PictureFormat{
		Geometry:    params.Geometry,
		PixelFormat: params.PixelFormat,
	})
	if err != nil {
		return codec.ErrScale{Err: fmt.Errorf("unable to build the scaler %s -> %s: %w", src, params.Geometry, err)}
	}
	s.scaler = scaler
	return nil
}

// encode scales the frame to the encoder geometry and encodes it. The
// presentation index advances even if encoding fails.
func (s *session) encode(ctx context.Context, f *frame.Frame) error {
	pts := s.index
	s.index++
	if s.scaler == nil {
		if err := s.rebuildScaler(ctx, f.GetFormat()); err != nil {
			return err
		}
	}
	scaled, err := s.scaler.Scale(ctx, f)
	if err != nil {
		var errScale codec.ErrScale
		if !errors.As(err, &errScale) {
			err = codec.ErrScale{Err: err}
		}
		return err
	}
	defer scaled.Release()
	scaled.PTS = pts

	pkt, err := s.encoder.Encode(ctx, scaled)
	switch {
	case err == nil:
	case errors.Is(err, codec.ErrNoOutput):
		return nil
	default:
		var errEncode codec.ErrEncode
		if !errors.As(err, &errEncode) {
			err = codec.ErrEncode{Err: err}
		}
		return err
	}
	return s.write(ctx, pkt)
}

func (s *session) write(ctx context.Context, pkt *codec.Packet) error {
	if err := s.muxer.WritePacket(ctx, pkt); err != nil {
		var errWrite codec.ErrWrite
		if !errors.As(err, &errWrite) {
			err = codec.ErrWrite{Err: err}
		}
		return err
	}
	if s.onWrite != nil {
		s.onWrite(pkt)
	}
	return nil
}

// flush drains the encoder; returns the amount of packets written.
func (s *session) flush(ctx context.Context) (int, error) {
	var count int
	for {
		pkt, err := s.encoder.Encode(ctx, nil)
		switch {
		case err == nil:
		case errors.Is(err, codec.ErrNoOutput):
			return count, nil
		default:
			return count, codec.ErrEncode{Err: fmt.Errorf("unable to flush: %w", err)}
		}
		if err := s.write(ctx, pkt); err != nil {
			logger.Errorf(ctx, "%v", err)
			continue
		}
		count++
	}
}

// close finalizes the file: flush, trailer, then the codec, the file
// and the scaler, in this order.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.encoder != nil && s.headerWritten {
		if _, err := s.flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.muxer != nil && s.headerWritten {
		if err := s.muxer.WriteTrailer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to write the trailer: %w", err))
		}
		s.headerWritten = false
	}
	if s.encoder != nil {
		if err := s.registry.WithCodecLock(ctx, func() error {
			return s.encoder.Close(ctx)
		}); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the encoder: %w", err))
		}
		s.encoder = nil
	}
	if s.muxer != nil {
		if err := s.muxer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the file: %w", err))
		}
		s.muxer = nil
	}
	if s.scaler != nil {
		if err := s.scaler.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the scaler: %w", err))
		}
		s.scaler = nil
	}
	if s.registered {
		s.registered = false
		s.registry.SessionClosed()
	}
	return errors.Join(errs...)
}
