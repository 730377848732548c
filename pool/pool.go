// Package pool recycles the memory of the picture planes.
package pool

import (
	"math/bits"
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

// ReuseMemory may be set to false to make every Get allocate, which helps
// to find use-after-release bugs.
var ReuseMemory = true

// Pool is a typed sync.Pool. Objects are reset before they are put back.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)
}

// New creates a pool; free may be nil if the objects hold only Go-managed
// memory, otherwise it is set as the finalizer of every allocated object.
func New[T any](
	alloc func() *T,
	reset func(*T),
	free func(*T),
) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any {
		v := alloc()
		if free != nil {
			runtime.SetFinalizer(v, free)
		}
		return v
	}
	return p
}

func (p *Pool[T]) Get() *T {
	if !ReuseMemory {
		return p.pool.New().(*T)
	}
	return p.pool.Get().(*T)
}

func (p *Pool[T]) Put(items ...*T) {
	if !ReuseMemory {
		return
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		if p.reset != nil {
			p.reset(item)
		}
		p.pool.Put(item)
	}
}

// minBucketBits is the capacity (as a power of two) of the smallest bucket.
const minBucketBits = 10

// Buffers pools byte slices in power-of-two capacity classes, so that
// planes of different geometries do not evict each other.
type Buffers struct {
	buckets   [bits.UintSize]*Pool[[]byte]
	allocated atomic.Uint64
	reused    atomic.Uint64
}

func NewBuffers() *Buffers {
	b := &Buffers{}
	for i := range b.buckets {
		b.buckets[i] = New(
			func() *[]byte { return &[]byte{} },
			func(buf *[]byte) { *buf = (*buf)[:0] },
			nil,
		)
	}
	return b
}

func bucketOf(size int) int {
	if size <= 1<<minBucketBits {
		return minBucketBits
	}
	return bits.Len(uint(size - 1))
}

// Get returns a zeroed buffer of length size.
func (b *Buffers) Get(size int) *[]byte {
	idx := bucketOf(size)
	buf := b.buckets[idx].Get()
	if cap(*buf) < size {
		*buf = make([]byte, size, 1<<idx)
		b.allocated.Inc()
		return buf
	}
	b.reused.Inc()
	*buf = (*buf)[:size]
	clear(*buf)
	return buf
}

// Put returns the buffer; it must not be used after that.
func (b *Buffers) Put(buf *[]byte) {
	if buf == nil || cap(*buf) == 0 {
		return
	}
	idx := bucketOf(cap(*buf))
	if cap(*buf) != 1<<idx {
		// foreign capacity: it would be too small for some sizes of the
		// bucket above
		idx--
	}
	if idx < minBucketBits {
		return
	}
	b.buckets[idx].Put(buf)
}

// Stats returns how many buffers were allocated and how many were reused.
func (b *Buffers) Stats() (allocated, reused uint64) {
	return b.allocated.Load(), b.reused.Load()
}
