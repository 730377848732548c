package codec

import (
	"fmt"

	"github.com/xaionaro-go/avfile/types"
)

type Packet struct {
	StreamIndex int
	Data        []byte
	PTS         int64
	DTS         int64
	Duration    int64
	IsKey       bool

	// Native is the adapter-specific packet handle.
	Native any
}

func (pkt *Packet) String() string {
	if pkt == nil {
		return "Packet(<nil>)"
	}
	return fmt.Sprintf("Packet(stream:%d size:%d pts:%d dts:%d key:%t)", pkt.StreamIndex, len(pkt.Data), pkt.PTS, pkt.DTS, pkt.IsKey)
}

type StreamInfo struct {
	Index     int
	CodecName string
	Format    types.PictureFormat

	// AvgFrameRate is zero if unknown.
	AvgFrameRate types.Rational
	TimeBase     types.Rational

	// Native is the adapter-specific stream handle.
	Native any
}

func (s StreamInfo) String() string {
	return fmt.Sprintf("stream#%d(%s %s @%s)", s.Index, s.CodecName, s.Format, s.AvgFrameRate)
}

// FrameRate returns the average frame rate or, if unknown, the reverse
// of the time base; zero if neither is known.
func (s StreamInfo) FrameRate() float64 {
	if r := s.AvgFrameRate.Float64(); r > 0 {
		return r
	}
	if r := s.TimeBase.Reverse().Float64(); r > 0 && r <= 1000 {
		return r
	}
	return 0
}

const (
	CodecNameMPEG4 = "mpeg4"

	FormatHintMPEG = "mpeg"

	DefaultGOP            = 250
	DefaultQMin           = 2
	DefaultEncoderFPSBase = 25
)

type EncoderParams struct {
	CodecName    string
	Geometry     types.Geometry
	PixelFormat  types.PixelFormat
	BitRate      uint64
	TimeBase     types.Rational
	FrameRate    types.Rational
	GOP          int
	MaxBFrames   int
	QMin         int
	GlobalHeader bool
}

// DefaultEncoderParams returns the MPEG-4 part 2 settings used for
// recording: YUV420P, time base 1/25, GOP 250, no B-frames, qmin 2.
func DefaultEncoderParams(geometry types.Geometry, bitRate uint64) EncoderParams {
	return EncoderParams{
		CodecName:   CodecNameMPEG4,
		Geometry:    geometry,
		PixelFormat: types.PixelFormatCanonical,
		BitRate:     bitRate,
		TimeBase:    types.Rational{Num: 1, Den: DefaultEncoderFPSBase},
		FrameRate:   types.Rational{Num: DefaultEncoderFPSBase, Den: 1},
		GOP:         DefaultGOP,
		MaxBFrames:  0,
		QMin:        DefaultQMin,
	}
}

func (p EncoderParams) String() string {
	return fmt.Sprintf("%s %s %s %d bps gop:%d", p.CodecName, p.Geometry, p.PixelFormat, p.BitRate, p.GOP)
}
