package calculator

import "fmt"

// IRC colour-coded direction markers.
const (
	MarkerUp    = "\x033▲\x03"
	MarkerDown  = "\x035▼\x03"
	MarkerEqual = "="
)

// Compare renders the direction and percentage change from previous to latest,
// e.g. "(▲ 10.00%)". A nil previous renders nothing.
func Compare(latest float64, previous *float64, label string) string {
	if previous == nil {
		return ""
	}
	p := *previous

	direction := MarkerEqual
	switch {
	case latest > p:
		direction = MarkerUp
	case latest < p:
		direction = MarkerDown
	}

	pct := (latest - p) / p * 100
	if label != "" {
		label = " " + label
	}
	return fmt.Sprintf("(%s %.2f%%%s)", direction, pct, label)
}
