// Package indicator smooths noisy measurements, like the time spent per
// frame, for reporting.
package indicator

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

type MovingAverage[T Number] interface {
	Update(v T) T
	Value() T
	Valid() bool
}
