package analyzer

import (
	"context"
	"time"

	"github.com/folkertvanheusden/GHBot-BTC/internal/calculator"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// Linear extrapolates one window ahead of now twice: from the last price before the
// current window to the latest price, and from the previous window's median to the
// current window's median. Each median is placed at the first timestamp of its window.
func (a *Analyzer) Linear(ctx context.Context) (*model.LinearForecast, error) {
	now := a.Now()
	target := now.Add(a.Window).Unix()

	latest, err := a.Ledger.Latest(ctx)
	if err != nil {
		return nil, classify("latest price", err)
	}
	back, err := a.Ledger.LatestBefore(ctx, now.Add(-a.Window))
	if err != nil {
		return nil, classify("price one window back", err)
	}
	ts, trend, err := calculator.PredictLinear(back.Price, back.Time.Unix(), latest.Price, latest.Time.Unix(), target)
	if err != nil {
		return nil, model.InsufficientData("price trend", err)
	}

	cur, err := a.Ledger.Summary(ctx, now.Add(-a.Window), now)
	if err != nil {
		return nil, classify("current window", err)
	}
	prev, err := a.Ledger.Summary(ctx, now.Add(-2*a.Window), now.Add(-a.Window))
	if err != nil {
		return nil, classify("previous window", err)
	}
	curMed, err := calculator.Median(cur.Prices)
	if err != nil {
		return nil, model.InsufficientData("current median", err)
	}
	prevMed, err := calculator.Median(prev.Prices)
	if err != nil {
		return nil, model.InsufficientData("previous median", err)
	}
	_, median, err := calculator.PredictLinear(prevMed, prev.FirstTime.Unix(), curMed, cur.FirstTime.Unix(), target)
	if err != nil {
		return nil, model.InsufficientData("median trend", err)
	}

	at := time.Unix(ts, 0).UTC()
	return &model.LinearForecast{
		Trend:  model.ForecastPoint{At: at, Value: trend, Method: model.MethodLinear},
		Median: model.ForecastPoint{At: at, Value: median, Method: model.MethodLinearMedian},
	}, nil
}
