// Package pipeline is the host side of the endpoints: a graph of filters
// connected by links and advanced by a periodic ticker.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/xsync"
)

// Tick is one invocation of the periodic scheduler.
type Tick struct {
	// Time is the time elapsed since the graph was attached to the ticker.
	Time  time.Duration
	Count uint64
}

func (t Tick) String() string {
	return fmt.Sprintf("tick#%d@%v", t.Count, t.Time)
}

// Filter is a node of the graph. All the methods are called with the
// filter lock held (see Locker), so the implementations must not take it
// again. Process must never block.
type Filter interface {
	fmt.Stringer
	Init(ctx context.Context) error
	Uninit(ctx context.Context) error
	Process(ctx context.Context, tick Tick, io IO) error
}

// Preprocessor is implemented by filters that need to do something when
// the graph gets attached to a ticker.
type Preprocessor interface {
	Preprocess(ctx context.Context, tick Tick) error
}

// Postprocessor is implemented by filters that need to do something when
// the graph gets detached from a ticker.
type Postprocessor interface {
	Postprocess(ctx context.Context) error
}

// Locker is implemented by filters that share their lock with their own
// control methods. Other filters get a private lock from the graph.
type Locker interface {
	FilterLocker() *xsync.Mutex
}

// IO is the set of links attached to a filter, indexed by pin.
type IO struct {
	Inputs  []*Link
	Outputs []*Link
}

// Input returns the link connected to the given input pin, or nil.
func (io IO) Input(pin int) *Link {
	if pin < 0 || pin >= len(io.Inputs) {
		return nil
	}
	return io.Inputs[pin]
}

// Output returns the link connected to the given output pin, or nil.
func (io IO) Output(pin int) *Link {
	if pin < 0 || pin >= len(io.Outputs) {
		return nil
	}
	return io.Outputs[pin]
}
