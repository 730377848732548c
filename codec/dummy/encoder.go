package dummy

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type encoder struct {
	adapter *Adapter
	params  codec.EncoderParams
	delay   int

	locker  xsync.Mutex
	pending []int64
	closed  atomic.Bool
	encoded atomic.Uint64
}

func (e *encoder) Params() codec.EncoderParams {
	return e.params
}

func (e *encoder) Encode(
	ctx context.Context,
	f *frame.Frame,
) (*codec.Packet, error) {
	if e.closed.Load() {
		return nil, codec.ErrEncode{Err: codec.ErrClosed{}}
	}
	if f != nil {
		if err := e.adapter.failPerFrame(perFrameOpEncode); err != nil {
			return nil, codec.ErrEncode{Err: err}
		}
	}
	return xsync.DoR2(ctx, &e.locker, func() (*codec.Packet, error) {
		if f != nil {
			if f.Geometry != e.params.Geometry || f.PixelFormat != e.params.PixelFormat {
				return nil, codec.ErrEncode{Err: fmt.Errorf("the frame is %s:%s, but the encoder expects %s:%s", f.Geometry, f.PixelFormat, e.params.Geometry, e.params.PixelFormat)}
			}
			e.pending = append(e.pending, f.PTS)
			e.encoded.Inc()
			if len(e.pending) <= e.delay {
				return nil, codec.ErrNoOutput
			}
		}
		if len(e.pending) == 0 {
			return nil, codec.ErrNoOutput
		}
		pts := e.pending[0]
		e.pending = e.pending[1:]
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(pts))
		return &codec.Packet{
			Data:     data,
			PTS:      pts,
			DTS:      pts,
			Duration: 1,
			IsKey:    e.params.GOP <= 1 || pts%int64(e.params.GOP) == 0,
		}, nil
	})
}

func (e *encoder) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	e.adapter.openHandles.Dec()
	return nil
}
