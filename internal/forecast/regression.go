package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFitted      = errors.New("model not fitted")
	ErrTooFewPoints   = errors.New("not enough points to fit")
	ErrFlatTimeSeries = errors.New("all points share one timestamp")
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// SeasonalRegression fits value = a + b*t + Σ Fourier terms by least squares.
// t is scaled to [0, 1] over the fitted history. A daily block is added when the
// history spans at least two days, a weekly block at two weeks.
type SeasonalRegression struct {
	MinPoints int
	Order     int // Fourier order per seasonal block

	origin  time.Time
	span    float64 // seconds covered by the history
	periods []time.Duration
	beta    []float64
}

// NewSeasonalRegression returns a regression with order-3 seasonal blocks.
func NewSeasonalRegression(minPoints int) *SeasonalRegression {
	return &SeasonalRegression{MinPoints: minPoints, Order: 3}
}

func (r *SeasonalRegression) Fit(points []Point) error {
	r.beta = nil
	if len(points) < r.MinPoints || len(points) < 2 {
		return fmt.Errorf("%d points (need %d): %w", len(points), r.MinPoints, ErrTooFewPoints)
	}

	r.origin = points[0].Time
	r.span = points[len(points)-1].Time.Sub(r.origin).Seconds()
	if r.span <= 0 {
		return ErrFlatTimeSeries
	}
	r.periods = r.periods[:0]
	if r.span >= (2 * day).Seconds() {
		r.periods = append(r.periods, day)
	}
	if r.span >= (2 * week).Seconds() {
		r.periods = append(r.periods, week)
	}

	cols := r.columns()
	if len(points) < cols {
		return fmt.Errorf("%d points for %d parameters: %w", len(points), cols, ErrTooFewPoints)
	}

	x := mat.NewDense(len(points), cols, nil)
	y := mat.NewDense(len(points), 1, nil)
	for i, p := range points {
		x.SetRow(i, r.features(p.Time))
		y.Set(i, 0, p.Value)
	}

	var qr mat.QR
	qr.Factorize(x)
	var b mat.Dense
	if err := qr.SolveTo(&b, false, y); err != nil {
		return fmt.Errorf("least squares: %w", err)
	}

	r.beta = make([]float64, cols)
	for i := range r.beta {
		r.beta[i] = b.At(i, 0)
	}
	return nil
}

func (r *SeasonalRegression) Predict(at []time.Time) ([]float64, error) {
	if r.beta == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(at))
	for i, t := range at {
		f := r.features(t)
		v := 0.0
		for j, c := range r.beta {
			v += c * f[j]
		}
		out[i] = v
	}
	return out, nil
}

func (r *SeasonalRegression) columns() int {
	return 2 + 2*r.Order*len(r.periods)
}

func (r *SeasonalRegression) features(t time.Time) []float64 {
	elapsed := t.Sub(r.origin).Seconds()
	f := make([]float64, 0, r.columns())
	f = append(f, 1, elapsed/r.span)
	for _, p := range r.periods {
		for k := 1; k <= r.Order; k++ {
			w := 2 * math.Pi * float64(k) * elapsed / p.Seconds()
			f = append(f, math.Sin(w), math.Cos(w))
		}
	}
	return f
}
