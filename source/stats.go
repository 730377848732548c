package source

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/atomic"
)

// timeWindow is the amount of frames the per frame timings are smoothed over.
const timeWindow = 50

type stats struct {
	Decoded      atomic.Uint64
	DecodedBytes atomic.Uint64
	Dropped      atomic.Uint64
	Discarded    atomic.Uint64
	Emitted      atomic.Uint64
	Starved      atomic.Uint64
	Rewinds      atomic.Uint64
	SeekFailures atomic.Uint64
}

// Stats is a snapshot of the counters of a Source.
type Stats struct {
	Decoded      uint64
	DecodedBytes uint64
	Dropped      uint64
	Discarded    uint64
	Emitted      uint64
	Starved      uint64
	Rewinds      uint64
	SeekFailures uint64
	Queued       int

	// DecodeTime is the smoothed time spent decoding a frame.
	DecodeTime time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"decoded:%d (%s) emitted:%d queued:%d dropped:%d discarded:%d starved:%d rewinds:%d seek_failures:%d decode_time:%v",
		s.Decoded, humanize.Bytes(s.DecodedBytes), s.Emitted, s.Queued,
		s.Dropped, s.Discarded, s.Starved, s.Rewinds, s.SeekFailures, s.DecodeTime,
	)
}
