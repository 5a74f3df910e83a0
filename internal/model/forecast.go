package model

import "time"

// ForecastMethod names the technique that produced a ForecastPoint.
type ForecastMethod string

const (
	MethodLinear         ForecastMethod = "linear"
	MethodLinearMedian   ForecastMethod = "linear-median"
	MethodSeasonalAvg    ForecastMethod = "seasonal-avg"
	MethodSeasonalMedian ForecastMethod = "seasonal-median"
)

// ForecastPoint is a single predicted value.
type ForecastPoint struct {
	At     time.Time
	Value  float64
	Method ForecastMethod
}

// LinearForecast holds both two-point extrapolations.
type LinearForecast struct {
	Trend  ForecastPoint // 24h-ago price -> latest price
	Median ForecastPoint // previous-day median -> today's median
}

// SeasonalForecast holds the predictions of the average and median fits.
type SeasonalForecast struct {
	Average ForecastPoint
	Median  ForecastPoint
	Buckets int
}
