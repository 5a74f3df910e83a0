package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/calculator"
	"github.com/folkertvanheusden/GHBot-BTC/internal/ledger"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// Analyzer computes window statistics and linear predictions from the ledger.
type Analyzer struct {
	Ledger      ledger.Ledger
	Window      time.Duration // trailing window for stats, 24h by default
	SparkBucket time.Duration // bucket width for the verbose sparkline
	Now         func() time.Time
}

// NewAnalyzer creates an Analyzer using the wall clock.
func NewAnalyzer(l ledger.Ledger, window, sparkBucket time.Duration) *Analyzer {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if sparkBucket <= 0 {
		sparkBucket = time.Hour
	}
	return &Analyzer{Ledger: l, Window: window, SparkBucket: sparkBucket, Now: time.Now}
}

// WindowStats returns min/max/avg/median over [from, to).
func (a *Analyzer) WindowStats(ctx context.Context, from, to time.Time) (model.WindowStat, error) {
	sum, err := a.Ledger.Summary(ctx, from, to)
	if err != nil {
		return model.WindowStat{}, classify("window stats", err)
	}
	med, err := calculator.Median(sum.Prices)
	if err != nil {
		return model.WindowStat{}, model.InsufficientData("window median", err)
	}
	return model.WindowStat{
		Min:    sum.Min,
		Max:    sum.Max,
		Avg:    sum.Avg,
		Median: med,
		Count:  sum.Count,
		Start:  from,
		End:    to,
	}, nil
}

// Stats reports the latest price and the current window compared with the one before it.
// With verbose set, a sparkline of per-bucket averages over the current window is added.
func (a *Analyzer) Stats(ctx context.Context, verbose bool) (*model.MarketStats, error) {
	now := a.Now()

	latest, err := a.Ledger.Latest(ctx)
	if err != nil {
		return nil, classify("latest price", err)
	}

	cur, err := a.WindowStats(ctx, now.Add(-a.Window), now)
	if err != nil {
		return nil, err
	}

	stats := &model.MarketStats{Latest: latest, Current: cur}

	prev, err := a.WindowStats(ctx, now.Add(-2*a.Window), now.Add(-a.Window))
	switch {
	case err == nil:
		stats.Previous = &prev
	case model.KindOf(err) == model.KindInsufficientData:
		log.Debugf("no previous window yet: %v", err)
	default:
		return nil, err
	}

	if verbose {
		line, err := a.sparkline(ctx, now.Add(-a.Window), now)
		if err != nil {
			return nil, err
		}
		stats.Sparkline = line
	}
	return stats, nil
}

func (a *Analyzer) sparkline(ctx context.Context, from, to time.Time) (string, error) {
	samples, err := a.Ledger.Range(ctx, from, to)
	if err != nil {
		return "", classify("sparkline samples", err)
	}
	buckets, err := calculator.Bucketize(samples, a.SparkBucket)
	if err != nil {
		return "", fmt.Errorf("sparkline buckets: %w", err)
	}
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = b.Avg
	}
	_, _, line, err := calculator.Sparkline(values, nil)
	if err != nil {
		return "", model.InsufficientData("sparkline", err)
	}
	return line, nil
}

func classify(op string, err error) error {
	if errors.Is(err, ledger.ErrNoData) {
		return model.InsufficientData(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
