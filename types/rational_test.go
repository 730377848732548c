package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRationalFromString(t *testing.T) {
	tests := []struct {
		input          string
		expectedNum    int
		expectedDen    int
		expectingError bool
	}{
		{"30", 30, 1, false},
		{"30/1", 30, 1, false},
		{"30000/1001", 30000, 1001, false},
		{"~23.976", 24000, 1001, false},
		{"~29.97", 30000, 1001, false},
		{"25", 25, 1, false},
		{"0/1", 0, 1, false},
		{"1/0", 0, 0, true},
		{"invalid", 0, 0, true},
		{"10/invalid", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			r, err := RationalFromString(test.input)
			if test.expectingError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expectedNum, r.Num)
			require.Equal(t, test.expectedDen, r.Den)
		})
	}
}

func TestRationalFloat64ZeroDenominator(t *testing.T) {
	require.Zero(t, Rational{Num: 1}.Float64())
	require.Equal(t, 0.5, Rational{Num: 1, Den: 2}.Float64())
}
