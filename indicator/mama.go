package indicator

import (
	"sync"

	indicators "github.com/lmpizarro/go_ehlers_indicators"
)

const (
	DefaultFastLimit = 0.5
	DefaultSlowLimit = 0.05
)

// MAMA is the MESA adaptive moving average over a window of the most
// recent samples. Until the window is filled it is the arithmetic mean of
// the samples seen so far.
type MAMA[T Number] struct {
	FastLimit float64
	SlowLimit float64

	locker  sync.Mutex
	window  []float64
	ordered []float64
	next    int
	count   int
	sum     float64
	value   T
}

var _ MovingAverage[int64] = (*MAMA[int64])(nil)

func NewMAMADefault[T Number](windowSize int) *MAMA[T] {
	return NewMAMA[T](windowSize, DefaultFastLimit, DefaultSlowLimit)
}

func NewMAMA[T Number](
	windowSize int,
	fastLimit float64,
	slowLimit float64,
) *MAMA[T] {
	if windowSize < 1 {
		windowSize = 1
	}
	return &MAMA[T]{
		FastLimit: fastLimit,
		SlowLimit: slowLimit,
		window:    make([]float64, windowSize),
		ordered:   make([]float64, windowSize),
	}
}

// Update adds a sample and returns the new average.
func (m *MAMA[T]) Update(v T) T {
	m.locker.Lock()
	defer m.locker.Unlock()

	if m.count < len(m.window) {
		m.window[m.next] = float64(v)
		m.next = (m.next + 1) % len(m.window)
		m.count++
		m.sum += float64(v)
		m.value = T(m.sum / float64(m.count))
		return m.value
	}

	m.window[m.next] = float64(v)
	m.next = (m.next + 1) % len(m.window)

	// the oldest sample is at m.next
	n := copy(m.ordered, m.window[m.next:])
	copy(m.ordered[n:], m.window[:m.next])

	result := indicators.MAMA(m.ordered, m.FastLimit, m.SlowLimit)
	m.value = T(result[len(result)-1])
	return m.value
}

// Value is the last computed average; zero if there were no samples.
func (m *MAMA[T]) Value() T {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.value
}

// Valid is true once the window is filled.
func (m *MAMA[T]) Valid() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.count >= len(m.window)
}
