package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/ledger"
	"github.com/folkertvanheusden/GHBot-BTC/internal/metrics"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// ErrInvalidPrice rejects ticks that are not finite and positive.
var ErrInvalidPrice = errors.New("price must be a positive finite number")

// MetricPusher forwards metric lines to a collector.
type MetricPusher interface {
	Push(ctx context.Context, lines ...metrics.Line) error
}

// Recorder accepts ticks from a Source.
type Recorder interface {
	Record(ctx context.Context, price float64, at time.Time) error
}

// Ingester validates ticks and appends them to the ledger.
type Ingester struct {
	Ledger     ledger.Ledger
	Metrics    MetricPusher // optional
	MetricName string
	Now        func() time.Time
}

// NewIngester creates an Ingester. m may be nil.
func NewIngester(l ledger.Ledger, m MetricPusher, metricName string) *Ingester {
	return &Ingester{Ledger: l, Metrics: m, MetricName: metricName, Now: time.Now}
}

// Record stores one tick at second resolution. A zero at means now. A second tick
// within the same second is dropped.
func (i *Ingester) Record(ctx context.Context, price float64, at time.Time) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return model.Validation("record tick", fmt.Errorf("%w: %v", ErrInvalidPrice, price))
	}
	if at.IsZero() {
		at = i.Now()
	}
	at = at.Truncate(time.Second)

	err := i.Ledger.Append(ctx, model.PriceSample{Time: at, Price: price})
	if errors.Is(err, ledger.ErrDuplicate) {
		log.Debugf("duplicate tick at %d dropped", at.Unix())
		return nil
	}
	if err != nil {
		return fmt.Errorf("record tick: %w", err)
	}

	if i.Metrics != nil {
		if err := i.Metrics.Push(ctx, metrics.Line{Name: i.MetricName, Value: price, Time: at}); err != nil {
			log.Warnf("push tick metric: %v", err)
		}
	}
	return nil
}
