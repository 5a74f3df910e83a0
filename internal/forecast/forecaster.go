package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/folkertvanheusden/GHBot-BTC/internal/calculator"
	"github.com/folkertvanheusden/GHBot-BTC/internal/ledger"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// Settings controls how history is bucketed and which future point is read back.
type Settings struct {
	BucketWidth time.Duration
	HistoryRows int
	Periods     int           // future points requested from the model
	ReadIndex   int           // 1-based index of the future point reported
	Frequency   time.Duration // spacing of the future points
}

// Validate checks that the read-back offset lies within the requested horizon.
func (s Settings) Validate() error {
	if s.BucketWidth < time.Second {
		return fmt.Errorf("bucket width %v must be at least 1s", s.BucketWidth)
	}
	if s.HistoryRows <= 0 {
		return errors.New("history rows must be positive")
	}
	if s.Periods <= 0 {
		return errors.New("periods must be positive")
	}
	if s.ReadIndex < 1 || s.ReadIndex > s.Periods {
		return fmt.Errorf("read index %d outside 1..%d", s.ReadIndex, s.Periods)
	}
	if s.Frequency <= 0 {
		return errors.New("frequency must be positive")
	}
	return nil
}

// Forecaster fits independent models to the bucket-average and bucket-median series.
type Forecaster struct {
	Ledger   ledger.Ledger
	NewModel ModelFactory
	Settings Settings
}

// NewForecaster validates settings and returns a Forecaster.
func NewForecaster(l ledger.Ledger, newModel ModelFactory, s Settings) (*Forecaster, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("forecast settings: %w", err)
	}
	return &Forecaster{Ledger: l, NewModel: newModel, Settings: s}, nil
}

// Forecast buckets recent history and runs both fits in parallel. Either fit failing
// fails the whole forecast.
func (f *Forecaster) Forecast(ctx context.Context) (*model.SeasonalForecast, error) {
	samples, err := f.Ledger.Recent(ctx, f.Settings.HistoryRows)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(samples) == 0 {
		return nil, model.InsufficientData("seasonal history", ledger.ErrNoData)
	}
	buckets, err := calculator.Bucketize(samples, f.Settings.BucketWidth)
	if err != nil {
		return nil, fmt.Errorf("bucket history: %w", err)
	}

	avgSeries := make([]Point, len(buckets))
	medSeries := make([]Point, len(buckets))
	for i, b := range buckets {
		avgSeries[i] = Point{Time: b.MeanTime, Value: b.Avg}
		medSeries[i] = Point{Time: b.MedianTime, Value: b.Median}
	}
	log.Debugf("seasonal forecast over %d samples in %d buckets", len(samples), len(buckets))

	var avg, med model.ForecastPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := f.fit(gctx, avgSeries, model.MethodSeasonalAvg)
		avg = p
		return err
	})
	g.Go(func() error {
		p, err := f.fit(gctx, medSeries, model.MethodSeasonalMedian)
		med = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &model.SeasonalForecast{Average: avg, Median: med, Buckets: len(buckets)}, nil
}

func (f *Forecaster) fit(ctx context.Context, series []Point, method model.ForecastMethod) (model.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return model.ForecastPoint{}, err
	}
	m := f.NewModel()
	if err := m.Fit(series); err != nil {
		if errors.Is(err, ErrTooFewPoints) {
			return model.ForecastPoint{}, model.InsufficientData(string(method)+" fit", err)
		}
		return model.ForecastPoint{}, model.Dependency(string(method)+" fit", err)
	}

	last := series[len(series)-1].Time
	future := make([]time.Time, f.Settings.Periods)
	for i := range future {
		future[i] = last.Add(time.Duration(i+1) * f.Settings.Frequency)
	}
	values, err := m.Predict(future)
	if err != nil {
		return model.ForecastPoint{}, model.Dependency(string(method)+" predict", err)
	}
	if len(values) != len(future) {
		return model.ForecastPoint{}, model.Dependency(string(method)+" predict",
			fmt.Errorf("model returned %d values for %d points", len(values), len(future)))
	}

	i := f.Settings.ReadIndex - 1
	return model.ForecastPoint{At: future[i], Value: values[i], Method: method}, nil
}
