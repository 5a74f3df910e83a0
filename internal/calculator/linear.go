package calculator

import "errors"

// ErrZeroInterval is returned when both observations share a timestamp.
var ErrZeroInterval = errors.New("observations share the same timestamp")

// PredictLinear extrapolates the line through (t1, v1) and (t2, v2) to t3.
func PredictLinear(v1 float64, t1 int64, v2 float64, t2 int64, t3 int64) (int64, float64, error) {
	if t1 == t2 {
		return 0, 0, ErrZeroInterval
	}
	slope := (v2 - v1) / float64(t2-t1)
	return t3, v2 + slope*float64(t3-t2), nil
}
