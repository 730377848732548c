package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMAMA(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		m := NewMAMADefault[int64](50)
		for range 100 {
			require.Equal(t, int64(100), m.Update(100))
		}
		require.True(t, m.Valid())
		require.Equal(t, int64(100), m.Value())
	})

	t.Run("warmup-is-mean", func(t *testing.T) {
		m := NewMAMADefault[float64](4)
		require.Equal(t, 1.0, m.Update(1))
		require.Equal(t, 2.0, m.Update(3))
		require.Equal(t, 3.0, m.Update(5))
		require.False(t, m.Valid())
	})

	t.Run("ramp", func(t *testing.T) {
		m := NewMAMA[int64](50, 0.3, 0.05)
		for i := int64(0); i <= 100; i++ {
			v := m.Update(i)
			require.True(t, i/2 <= v && v <= i, "%d: %d", i, v)
		}
	})

	t.Run("alternating", func(t *testing.T) {
		m := NewMAMA[int64](50, 0.3, 0.05)
		for i := range 100 {
			v0 := m.Update(0)
			v1 := m.Update(100)
			if i > 50 {
				require.True(t, 40 <= v0 && v0 <= 60, "%d: %d", i, v0)
				require.True(t, 40 <= v1 && v1 <= 60, "%d: %d", i, v1)
			}
		}
	})

	t.Run("durations", func(t *testing.T) {
		m := NewMAMADefault[time.Duration](8)
		require.Zero(t, m.Value())
		for range 20 {
			m.Update(10 * time.Millisecond)
		}
		require.InDelta(t, float64(10*time.Millisecond), float64(m.Value()), float64(time.Microsecond))
	})
}
