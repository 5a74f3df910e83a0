package model

import (
	"sort"
	"time"
)

// ExchangeRateSnapshot maps currency codes to the price of one unit of the asset.
type ExchangeRateSnapshot struct {
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Stale reports whether the snapshot is older than maxAge at now.
func (s *ExchangeRateSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	if s == nil || len(s.Rates) == 0 {
		return true
	}
	return now.Sub(s.FetchedAt) > maxAge
}

// Codes returns the known currency codes in sorted order.
func (s *ExchangeRateSnapshot) Codes() []string {
	codes := make([]string, 0, len(s.Rates))
	for c := range s.Rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
