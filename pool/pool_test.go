package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolResetOnPut(t *testing.T) {
	allocated := 0
	p := New(
		func() *[]byte {
			allocated++
			b := make([]byte, 0, 16)
			return &b
		},
		func(b *[]byte) { *b = (*b)[:0] },
		nil,
	)

	b := p.Get()
	*b = append(*b, 1, 2, 3)
	p.Put(b, nil)

	b = p.Get()
	require.Len(t, *b, 0)
	require.GreaterOrEqual(t, allocated, 1)
}

func TestBucketOf(t *testing.T) {
	require.Equal(t, minBucketBits, bucketOf(1))
	require.Equal(t, minBucketBits, bucketOf(1<<minBucketBits))
	require.Equal(t, minBucketBits+1, bucketOf(1<<minBucketBits+1))
	require.Equal(t, 17, bucketOf(176*144*3/2*2))
}

func TestBuffers(t *testing.T) {
	b := NewBuffers()

	buf := b.Get(38016)
	require.Len(t, *buf, 38016)
	require.Equal(t, 1<<16, cap(*buf))
	(*buf)[0] = 42
	b.Put(buf)

	buf = b.Get(40000)
	require.Len(t, *buf, 40000)
	require.Zero(t, (*buf)[0])

	allocated, reused := b.Stats()
	require.Equal(t, uint64(2), allocated+reused)

	foreign := make([]byte, 3000)
	b.Put(&foreign)
	b.Put(nil)
}
