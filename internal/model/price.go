package model

import "time"

// PriceSample is one tick as stored in the ledger.
type PriceSample struct {
	Time  time.Time
	Price float64
}

// Bucket groups the samples whose timestamps fall into the same fixed-width interval.
type Bucket struct {
	Key        int64 // floor(unix seconds / width seconds)
	Start      time.Time
	Samples    []PriceSample
	Avg        float64
	Median     float64
	MeanTime   time.Time
	MedianTime time.Time
}

// WindowStat summarizes the half-open window [Start, End).
type WindowStat struct {
	Min    float64
	Max    float64
	Avg    float64
	Median float64
	Count  int
	Start  time.Time
	End    time.Time
}

// WindowSummary is the raw material for a WindowStat as read from the ledger.
// Prices are in ascending time order.
type WindowSummary struct {
	Min       float64
	Max       float64
	Avg       float64
	Count     int
	FirstTime time.Time
	Prices    []float64
}

// MarketStats is everything the stats command reports.
type MarketStats struct {
	Latest    PriceSample
	Current   WindowStat
	Previous  *WindowStat // nil when there is no history for the previous window
	Sparkline string
}
