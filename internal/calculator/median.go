package calculator

import "sort"

// Median returns the middle value of values, or the mean of the two middle values
// for an even count. The input slice is not modified.
func Median(values []float64) (float64, error) {
	switch len(values) {
	case 0:
		return 0, ErrEmpty
	case 1:
		return values[0], nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}
