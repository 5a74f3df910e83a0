package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/folkertvanheusden/GHBot-BTC/internal/calculator"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// MemoryLedger is an in-process Ledger used when no database is configured.
// Its contents are lost on exit.
type MemoryLedger struct {
	mu      sync.RWMutex
	samples []model.PriceSample // ascending, unique seconds
}

func NewMemoryLedger() *MemoryLedger { return &MemoryLedger{} }

func (m *MemoryLedger) Append(_ context.Context, s model.PriceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.Time = time.Unix(s.Time.Unix(), 0).UTC()
	i := m.search(s.Time)
	if i < len(m.samples) && m.samples[i].Time.Equal(s.Time) {
		return ErrDuplicate
	}
	m.samples = append(m.samples, model.PriceSample{})
	copy(m.samples[i+1:], m.samples[i:])
	m.samples[i] = s
	return nil
}

func (m *MemoryLedger) Range(_ context.Context, from, to time.Time) ([]model.PriceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window(from, to), nil
}

func (m *MemoryLedger) Latest(_ context.Context) (model.PriceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.samples) == 0 {
		return model.PriceSample{}, ErrNoData
	}
	return m.samples[len(m.samples)-1], nil
}

func (m *MemoryLedger) LatestBefore(_ context.Context, t time.Time) (model.PriceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.search(t)
	if i == 0 {
		return model.PriceSample{}, ErrNoData
	}
	return m.samples[i-1], nil
}

func (m *MemoryLedger) Recent(_ context.Context, limit int) ([]model.PriceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := len(m.samples) - limit
	if start < 0 {
		start = 0
	}
	out := make([]model.PriceSample, len(m.samples)-start)
	copy(out, m.samples[start:])
	return out, nil
}

func (m *MemoryLedger) Summary(_ context.Context, from, to time.Time) (model.WindowSummary, error) {
	m.mu.RLock()
	samples := m.window(from, to)
	m.mu.RUnlock()

	if len(samples) == 0 {
		return model.WindowSummary{}, ErrNoData
	}
	prices := make([]float64, len(samples))
	for i, s := range samples {
		prices[i] = s.Price
	}
	low, high, _ := calculator.Extremes(prices)
	avg, _ := calculator.Mean(prices)
	return model.WindowSummary{
		Min:       low,
		Max:       high,
		Avg:       avg,
		Count:     len(prices),
		FirstTime: samples[0].Time,
		Prices:    prices,
	}, nil
}

func (m *MemoryLedger) Close() error { return nil }

// search returns the index of the first sample not before t. Samples are on whole
// seconds, so a t inside a second already splits at the right place.
func (m *MemoryLedger) search(t time.Time) int {
	return sort.Search(len(m.samples), func(i int) bool { return !m.samples[i].Time.Before(t) })
}

func (m *MemoryLedger) window(from, to time.Time) []model.PriceSample {
	lo := m.search(from)
	hi := m.search(to)
	if hi < lo {
		return nil
	}
	out := make([]model.PriceSample, hi-lo)
	copy(out, m.samples[lo:hi])
	return out
}
