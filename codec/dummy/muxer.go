package dummy

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avfile/codec"
	"github.com/xaionaro-go/xsync"
)

type EventKind int

const (
	EventKindUndefined = EventKind(iota)
	EventKindStream
	EventKindHeader
	EventKindPacket
	EventKindTrailer
	EventKindClose
)

func (k EventKind) String() string {
	switch k {
	case EventKindUndefined:
		return "<undefined>"
	case EventKindStream:
		return "stream"
	case EventKindHeader:
		return "header"
	case EventKindPacket:
		return "packet"
	case EventKindTrailer:
		return "trailer"
	case EventKindClose:
		return "close"
	default:
		return fmt.Sprintf("<unknown_event_%d>", int(k))
	}
}

type Event struct {
	Kind   EventKind
	Packet *codec.Packet
}

// Recording is everything that was written into a file.
type Recording struct {
	locker    xsync.Mutex
	Path      string
	Container string
	params    []codec.EncoderParams
	events    []Event
}

func (r *Recording) Events() []Event {
	return xsync.DoR1(context.Background(), &r.locker, func() []Event {
		return append([]Event(nil), r.events...)
	})
}

func (r *Recording) Streams() []codec.EncoderParams {
	return xsync.DoR1(context.Background(), &r.locker, func() []codec.EncoderParams {
		return append([]codec.EncoderParams(nil), r.params...)
	})
}

// Packets returns the written packets in order.
func (r *Recording) Packets() []*codec.Packet {
	var result []*codec.Packet
	for _, ev := range r.Events() {
		if ev.Kind == EventKindPacket {
			result = append(result, ev.Packet)
		}
	}
	return result
}

// IsFinalized is true if the file has a header and a trailer and is closed.
func (r *Recording) IsFinalized() bool {
	events := r.Events()
	if len(events) < 2 {
		return false
	}
	hasHeader := false
	for _, ev := range events {
		if ev.Kind == EventKindHeader {
			hasHeader = true
		}
	}
	return hasHeader &&
		events[len(events)-2].Kind == EventKindTrailer &&
		events[len(events)-1].Kind == EventKindClose
}

func (r *Recording) add(ev Event) {
	r.locker.Do(context.Background(), func() {
		r.events = append(r.events, ev)
	})
}

type muxer struct {
	adapter   *Adapter
	recording *Recording

	locker        xsync.Mutex
	headerWritten bool
	trailerDone   bool
	closed        bool
}

func (m *muxer) Path() string {
	return m.recording.Path
}

func (m *muxer) NeedsGlobalHeader() bool {
	switch m.recording.Container {
	case "mp4", "matroska":
		return true
	}
	return false
}

func (m *muxer) AddVideoStream(ctx context.Context, enc codec.Encoder) error {
	return xsync.DoR1(ctx, &m.locker, func() error {
		if m.headerWritten {
			return codec.ErrWrite{Err: fmt.Errorf("the header is already written")}
		}
		m.recording.locker.Do(ctx, func() {
			m.recording.params = append(m.recording.params, enc.Params())
		})
		m.recording.add(Event{Kind: EventKindStream})
		return nil
	})
}

func (m *muxer) WriteHeader(ctx context.Context) error {
	if err := m.adapter.getFailures().WriteHeader; err != nil {
		return codec.ErrWrite{Err: err}
	}
	return xsync.DoR1(ctx, &m.locker, func() error {
		if m.closed || m.headerWritten {
			return codec.ErrWrite{Err: fmt.Errorf("unexpected header")}
		}
		m.headerWritten = true
		m.recording.add(Event{Kind: EventKindHeader})
		return nil
	})
}

func (m *muxer) WritePacket(ctx context.Context, pkt *codec.Packet) error {
	if err := m.adapter.failPerFrame(perFrameOpWritePacket); err != nil {
		return codec.ErrWrite{Err: err}
	}
	return xsync.DoR1(ctx, &m.locker, func() error {
		if m.closed || !m.headerWritten || m.trailerDone {
			return codec.ErrWrite{Err: fmt.Errorf("unexpected packet %s", pkt)}
		}
		m.recording.add(Event{Kind: EventKindPacket, Packet: pkt})
		return nil
	})
}

func (m *muxer) WriteTrailer(ctx context.Context) error {
	return xsync.DoR1(ctx, &m.locker, func() error {
		if m.closed || !m.headerWritten || m.trailerDone {
			return codec.ErrWrite{Err: fmt.Errorf("unexpected trailer")}
		}
		m.trailerDone = true
		m.recording.add(Event{Kind: EventKindTrailer})
		return nil
	})
}

func (m *muxer) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &m.locker, func() error {
		if m.closed {
			return nil
		}
		m.closed = true
		m.adapter.openHandles.Dec()
		m.recording.add(Event{Kind: EventKindClose})
		return nil
	})
}
