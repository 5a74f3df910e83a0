package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/folkertvanheusden/GHBot-BTC/internal/metrics"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

type countingAnnouncer struct {
	mu sync.Mutex
	n  int
}

func (a *countingAnnouncer) Announce() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	return nil
}

var (
	linearAt      = time.Unix(1700086400, 0)
	seasonalAvgAt = time.Unix(1700086100, 0)
	seasonalMedAt = time.Unix(1700086250, 0)
)

type stubLinear struct{ err error }

func (s stubLinear) Linear(context.Context) (*model.LinearForecast, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.LinearForecast{
		Trend:  model.ForecastPoint{At: linearAt, Value: 10},
		Median: model.ForecastPoint{At: linearAt, Value: 11},
	}, nil
}

type stubSeasonal struct{ err error }

func (s stubSeasonal) Forecast(context.Context) (*model.SeasonalForecast, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.SeasonalForecast{
		Average: model.ForecastPoint{At: seasonalAvgAt, Value: 20},
		Median:  model.ForecastPoint{At: seasonalMedAt, Value: 21},
	}, nil
}

type recordingPusher struct {
	mu    sync.Mutex
	lines []metrics.Line
}

func (p *recordingPusher) Push(_ context.Context, lines ...metrics.Line) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, lines...)
	return nil
}

func TestMetricsTask_AllForecasts(t *testing.T) {
	p := &recordingPusher{}
	s := NewScheduler(context.Background(), &countingAnnouncer{}, stubLinear{}, stubSeasonal{}, p, "btc_usd")

	s.metricsTask()

	want := map[string]metrics.Line{
		"btc_usd_seasonal_avg":    {Value: 20, Time: seasonalAvgAt},
		"btc_usd_seasonal_median": {Value: 21, Time: seasonalMedAt},
		"btc_usd_plin_avg":        {Value: 10, Time: linearAt},
		"btc_usd_plin_median":     {Value: 11, Time: linearAt},
	}
	if len(p.lines) != len(want) {
		t.Fatalf("pushed %d lines, want %d", len(p.lines), len(want))
	}
	for _, l := range p.lines {
		w, ok := want[l.Name]
		if !ok || w.Value != l.Value || !l.Time.Equal(w.Time) {
			t.Errorf("line %+v, want value %v at %v", l, w.Value, w.Time)
		}
	}
}

func TestMetricsTask_PartialFailure(t *testing.T) {
	p := &recordingPusher{}
	s := NewScheduler(context.Background(), &countingAnnouncer{}, stubLinear{}, stubSeasonal{err: errors.New("too few points")}, p, "btc_usd")

	s.metricsTask()

	if len(p.lines) != 2 || p.lines[0].Name != "btc_usd_plin_avg" {
		t.Errorf("lines = %+v", p.lines)
	}
}

func TestMetricsTask_NothingToPush(t *testing.T) {
	p := &recordingPusher{}
	fail := errors.New("no data")
	s := NewScheduler(context.Background(), &countingAnnouncer{}, stubLinear{err: fail}, stubSeasonal{err: fail}, p, "btc_usd")

	s.metricsTask()

	if len(p.lines) != 0 {
		t.Errorf("lines = %+v", p.lines)
	}
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &countingAnnouncer{}, stubLinear{}, stubSeasonal{}, nil, "btc_usd")
	if err := s.RegisterAll("@every 5s", "@every 1m"); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Cron.Entries()); n != 1 {
		t.Errorf("entries without metrics = %d, want 1", n)
	}

	s = NewScheduler(context.Background(), &countingAnnouncer{}, stubLinear{}, stubSeasonal{}, &recordingPusher{}, "btc_usd")
	if err := s.RegisterAll("@every 5s", "@every 1m"); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Cron.Entries()); n != 2 {
		t.Errorf("entries with metrics = %d, want 2", n)
	}

	if err := s.RegisterAll("not a cron", "@every 1m"); err == nil {
		t.Error("expected error for bad announce schedule")
	}
}

func TestRunAnnounceNow(t *testing.T) {
	a := &countingAnnouncer{}
	s := NewScheduler(context.Background(), a, stubLinear{}, stubSeasonal{}, nil, "btc_usd")
	s.RunAnnounceNow()
	if a.n != 1 {
		t.Errorf("announce count = %d", a.n)
	}
}
