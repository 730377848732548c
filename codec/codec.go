// Package codec is the boundary between the endpoints and the media library.
// The endpoints only talk to the interfaces declared here; see package libav
// for the FFmpeg-backed implementation and package dummy for an in-memory one.
package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/types"
)

// Picture is a decoded picture in whatever layout the decoder produced.
// The holder owns it and must Release it.
type Picture interface {
	GetFormat() types.PictureFormat
	Release()
}

var _ Picture = (*frame.Frame)(nil)

type Adapter interface {
	fmt.Stringer

	// OpenForRead opens a container for demuxing.
	OpenForRead(ctx context.Context, path string) (Demuxer, error)

	// OpenDecoder opens a decoder for the given stream.
	OpenDecoder(ctx context.Context, stream StreamInfo) (Decoder, error)

	// OpenEncoder opens a video encoder.
	OpenEncoder(ctx context.Context, params EncoderParams) (Encoder, error)

	// BuildScaler builds a converter between two picture layouts.
	BuildScaler(ctx context.Context, src, dst types.PictureFormat) (Scaler, error)

	// OpenForWrite creates the file and a muxer for it. The container
	// is deduced from the path; formatHint is tried if that fails.
	OpenForWrite(ctx context.Context, path string, formatHint string) (Muxer, error)
}

type Closer interface {
	Close(ctx context.Context) error
}

type Demuxer interface {
	Closer

	// VideoStream returns the first stream with video capability.
	VideoStream(ctx context.Context) (StreamInfo, error)

	// ReadPacket returns io.EOF at the end of the stream.
	ReadPacket(ctx context.Context) (*Packet, error)

	// SeekToStart rewinds the container to its very beginning.
	SeekToStart(ctx context.Context) error
}

type Decoder interface {
	Closer

	// Decode feeds a packet and returns the next picture if there is one;
	// ErrNeedMoreInput otherwise.
	Decode(ctx context.Context, pkt *Packet) (Picture, error)
}

type Encoder interface {
	Closer

	Params() EncoderParams

	// Encode feeds a frame (nil means flush) and returns the next packet
	// if there is one; ErrNoOutput otherwise. After a flush it should be
	// called with nil until ErrNoOutput is returned.
	Encode(ctx context.Context, f *frame.Frame) (*Packet, error)
}

type Scaler interface {
	Closer
	fmt.Stringer

	Source() types.PictureFormat
	Destination() types.PictureFormat

	// Scale converts the picture into a new frame owned by the caller.
	// The source picture is not released.
	Scale(ctx context.Context, src Picture) (*frame.Frame, error)
}

type Muxer interface {
	Closer

	Path() string

	// NeedsGlobalHeader is true if the container wants the codec
	// configuration in the stream header instead of the bitstream.
	NeedsGlobalHeader() bool

	AddVideoStream(ctx context.Context, enc Encoder) error
	WriteHeader(ctx context.Context) error
	WritePacket(ctx context.Context, pkt *Packet) error
	WriteTrailer(ctx context.Context) error
}
