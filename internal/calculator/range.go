package calculator

import (
	"errors"
	"math"
)

// ErrEmpty is returned when a statistic is requested over no values.
var ErrEmpty = errors.New("no values provided")

// Extremes scans values and returns the lowest and highest.
func Extremes(values []float64) (low, high float64, err error) {
	if len(values) == 0 {
		return 0, 0, ErrEmpty
	}
	low = math.Inf(1)
	high = math.Inf(-1)
	for _, v := range values {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return low, high, nil
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmpty
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}
