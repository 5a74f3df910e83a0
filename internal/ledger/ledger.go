package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

var (
	// ErrDuplicate is returned by Append when a sample already exists at that timestamp.
	ErrDuplicate = errors.New("sample already recorded at this timestamp")
	// ErrNoData is returned when a query matches no samples.
	ErrNoData = errors.New("no price data in range")
)

// Ledger is the append-only store of price samples. Timestamps have one second
// resolution; every read returns samples in ascending time order.
type Ledger interface {
	Append(ctx context.Context, s model.PriceSample) error
	Range(ctx context.Context, from, to time.Time) ([]model.PriceSample, error)
	Latest(ctx context.Context) (model.PriceSample, error)
	LatestBefore(ctx context.Context, t time.Time) (model.PriceSample, error)
	Recent(ctx context.Context, limit int) ([]model.PriceSample, error)
	// Summary reads aggregates and the price list of [from, to) from one snapshot.
	Summary(ctx context.Context, from, to time.Time) (model.WindowSummary, error)
	Close() error
}

// boundUnix maps a window bound onto whole seconds. A bound with a fractional second
// rounds up, since the sample stored at its floor lies before it.
func boundUnix(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}
