package sink

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/atomic"
)

// timeWindow is the amount of frames the encode time is smoothed over.
const timeWindow = 50

type stats struct {
	Consumed          atomic.Uint64
	Encoded           atomic.Uint64
	Failed            atomic.Uint64
	Packets           atomic.Uint64
	Bytes             atomic.Uint64
	DroppedNotReady   atomic.Uint64
	DroppedNotRunning atomic.Uint64
	DroppedOverflow   atomic.Uint64
	DroppedInput      atomic.Uint64
	Restarts          atomic.Uint64
}

// Stats is a snapshot of the counters of a Sink.
type Stats struct {
	Consumed          uint64
	Encoded           uint64
	Failed            uint64
	Packets           uint64
	Bytes             uint64
	DroppedNotReady   uint64
	DroppedNotRunning uint64
	DroppedOverflow   uint64
	DroppedInput      uint64
	Restarts          uint64
	Queued            int

	// EncodeTime is the smoothed time spent scaling and encoding a frame.
	EncodeTime time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"consumed:%d encoded:%d queued:%d packets:%d (%s) failed:%d dropped(not ready:%d, not running:%d, overflow:%d, other inputs:%d) restarts:%d encode_time:%v",
		s.Consumed, s.Encoded, s.Queued, s.Packets, humanize.Bytes(s.Bytes), s.Failed,
		s.DroppedNotReady, s.DroppedNotRunning, s.DroppedOverflow, s.DroppedInput, s.Restarts, s.EncodeTime,
	)
}
