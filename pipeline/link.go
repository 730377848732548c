package pipeline

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avfile/frame"
	"github.com/xaionaro-go/avfile/queue"
)

// Link is a FIFO of frames between an output pin and an input pin.
type Link struct {
	From    Filter
	FromPin int
	To      Filter
	ToPin   int

	queue *queue.Queue[*frame.Frame]
}

func newLink(from Filter, fromPin int, to Filter, toPin int) *Link {
	return &Link{
		From:    from,
		FromPin: fromPin,
		To:      to,
		ToPin:   toPin,
		queue:   queue.New[*frame.Frame](),
	}
}

func (l *Link) String() string {
	return fmt.Sprintf("%s:%d->%s:%d", l.From, l.FromPin, l.To, l.ToPin)
}

// Put passes the ownership of the frame to the link.
func (l *Link) Put(ctx context.Context, f *frame.Frame) {
	l.queue.Push(ctx, f)
}

// Get returns the oldest frame (or nil); the caller becomes its owner.
func (l *Link) Get(ctx context.Context) *frame.Frame {
	f, _ := l.queue.TryPop(ctx)
	return f
}

func (l *Link) Len(ctx context.Context) int {
	return l.queue.Len(ctx)
}

// Drain releases every frame left in the link.
func (l *Link) Drain(ctx context.Context) int {
	frames := l.queue.Flush(ctx)
	for _, f := range frames {
		f.Release()
	}
	return len(frames)
}
