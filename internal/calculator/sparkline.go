package calculator

import (
	"math"
	"strings"
)

// SparklineUnavailable is rendered instead of a flat line when all values are equal.
const SparklineUnavailable = "- n.a. (yet) -"

// DefaultGlyphs are the eight block heights used for sparklines.
var DefaultGlyphs = []rune("▁▂▃▄▅▆▇█")

// Sparkline maps each value linearly between the sequence minimum and maximum onto
// one of glyphs. With max == min no scale exists and SparklineUnavailable is returned.
func Sparkline(values []float64, glyphs []rune) (low, high float64, line string, err error) {
	low, high, err = Extremes(values)
	if err != nil {
		return 0, 0, "", err
	}
	if len(glyphs) == 0 {
		glyphs = DefaultGlyphs
	}
	extent := high - low
	if extent == 0 {
		return low, high, SparklineUnavailable, nil
	}

	n := len(glyphs)
	var b strings.Builder
	for _, v := range values {
		level := int(math.Floor((v - low) / extent * float64(n)))
		if level > n-1 {
			level = n - 1
		}
		if level < 0 {
			level = 0
		}
		b.WriteRune(glyphs[level])
	}
	return low, high, b.String(), nil
}
