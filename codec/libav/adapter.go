// Package libav implements codec.Adapter on top of FFmpeg (via go-astiav).
package libav

import (
	"context"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/avfile/types"
)

type Adapter struct{}

var _ codec.Adapter = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{}
}

func (*Adapter) String() string {
	return "libav"
}

func (*Adapter) OpenForRead(ctx context.Context, path string) (codec.Demuxer, error) {
	d, err := OpenInput(ctx, path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (*Adapter) OpenDecoder(ctx context.Context, stream codec.StreamInfo) (codec.Decoder, error) {
	d, err := NewDecoder(ctx, stream)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (*Adapter) OpenEncoder(ctx context.Context, params codec.EncoderParams) (codec.Encoder, error) {
	e, err := NewEncoder(ctx, params)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (*Adapter) BuildScaler(ctx context.Context, src, dst types.PictureFormat) (codec.Scaler, error) {
	s, err := NewScaler(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (*Adapter) OpenForWrite(ctx context.Context, path string, formatHint string) (codec.Muxer, error) {
	m, err := OpenOutput(ctx, path, formatHint)
	if err != nil {
		return nil, err
	}
	return m, nil
}
