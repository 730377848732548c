package dummy

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/types"
	"go.uber.org/atomic"
)

const (
	audioStreamIndex = 0
)

type demuxer struct {
	adapter *Adapter
	clip    Clip
	pos     atomic.Int64
	closed  atomic.Bool
}

func (d *demuxer) videoStreamIndex() int {
	if d.clip.WithAudio {
		return 1
	}
	return 0
}

func (d *demuxer) VideoStream(ctx context.Context) (codec.StreamInfo, error) {
	return codec.StreamInfo{
		Index:        d.videoStreamIndex(),
		CodecName:    "rawvideo",
		Format:       d.clip.Format,
		AvgFrameRate: d.clip.FrameRate,
		TimeBase:     d.clip.FrameRate.Reverse(),
		Native:       d.clip,
	}, nil
}

// ReadPacket emits, for every picture, an optional audio packet followed
// by a video packet carrying the picture number.
func (d *demuxer) ReadPacket(ctx context.Context) (*codec.Packet, error) {
	if d.closed.Load() {
		return nil, codec.ErrClosed{}
	}
	if err := d.adapter.failPerFrame(perFrameOpReadPacket); err != nil {
		return nil, err
	}
	packetsPerPicture := int64(1)
	if d.clip.WithAudio {
		packetsPerPicture = 2
	}
	pos := d.pos.Inc() - 1
	picture := pos / packetsPerPicture
	if picture >= int64(d.clip.Frames) {
		d.pos.Dec()
		return nil, io.EOF
	}
	if d.clip.WithAudio && pos%packetsPerPicture == 0 {
		return &codec.Packet{
			StreamIndex: audioStreamIndex,
			Data:        []byte{0xff},
			PTS:         picture,
			DTS:         picture,
		}, nil
	}
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(picture))
	return &codec.Packet{
		StreamIndex: d.videoStreamIndex(),
		Data:        data,
		PTS:         picture,
		DTS:         picture,
		Duration:    1,
		IsKey:       picture == 0,
	}, nil
}

func (d *demuxer) SeekToStart(ctx context.Context) error {
	if err := d.adapter.getFailures().Seek; err != nil {
		return codec.ErrSeek{Err: err}
	}
	d.pos.Store(0)
	return nil
}

func (d *demuxer) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}
	d.adapter.openHandles.Dec()
	return nil
}

type decoder struct {
	adapter *Adapter
	clip    Clip
	closed  atomic.Bool
}

// PictureLuma is the luma value the decoder paints picture number n with.
func PictureLuma(n uint64) byte {
	return byte(16 + n%200)
}

func (d *decoder) Decode(ctx context.Context, pkt *codec.Packet) (codec.Picture, error) {
	if d.closed.Load() {
		return nil, codec.ErrDecode{Err: codec.ErrClosed{}}
	}
	if pkt == nil {
		return nil, codec.ErrNeedMoreInput
	}
	if err := d.adapter.failPerFrame(perFrameOpDecode); err != nil {
		return nil, codec.ErrDecode{Err: err}
	}
	if len(pkt.Data) != 8 {
		return nil, codec.ErrDecode{Err: fmt.Errorf("invalid packet size %d", len(pkt.Data))}
	}
	n := binary.BigEndian.Uint64(pkt.Data)
	f, err := frame.New(d.clip.Format.Geometry, d.clip.Format.PixelFormat)
	if err != nil {
		return nil, codec.ErrDecode{Err: err}
	}
	switch d.clip.Format.PixelFormat {
	case types.PixelFormatRGBA:
		for idx := range f.Planes[0] {
			f.Planes[0][idx] = PictureLuma(n)
		}
	default:
		f.Fill(PictureLuma(n), 128, 128)
	}
	f.PTS = int64(n)
	return f, nil
}

func (d *decoder) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}
	d.adapter.openHandles.Dec()
	return nil
}
