package forecast

import "time"

// Point is one observation of a series fed to a Model.
type Point struct {
	Time  time.Time
	Value float64
}

// Model is a trend+seasonality regressor. Fit must be called before Predict.
type Model interface {
	Fit(points []Point) error
	Predict(at []time.Time) ([]float64, error)
}

// ModelFactory returns a fresh, unfitted Model.
type ModelFactory func() Model
