package calculator

import (
	"errors"
	"fmt"
	"time"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// ErrUnsorted is returned by Bucketize when samples are not in ascending time order.
var ErrUnsorted = errors.New("samples not in ascending time order")

// BucketKey returns floor(t / width) in whole seconds.
func BucketKey(t time.Time, width time.Duration) int64 {
	w := int64(width / time.Second)
	ts := t.Unix()
	k := ts / w
	if ts%w != 0 && ts < 0 {
		k--
	}
	return k
}

// Bucketize groups ascending samples into fixed-width buckets in a single pass.
// One bucket is emitted per distinct key, in input order.
func Bucketize(samples []model.PriceSample, width time.Duration) ([]model.Bucket, error) {
	if width < time.Second {
		return nil, fmt.Errorf("bucket width %v: must be at least 1s", width)
	}

	var (
		out     []model.Bucket
		current []model.PriceSample
		key     int64
		prev    time.Time
	)
	for i, s := range samples {
		if i > 0 && s.Time.Before(prev) {
			return nil, fmt.Errorf("sample %d at %s: %w", i, s.Time.Format(time.RFC3339), ErrUnsorted)
		}
		prev = s.Time

		k := BucketKey(s.Time, width)
		if len(current) > 0 && k != key {
			out = append(out, flush(key, width, current))
			current = nil
		}
		key = k
		current = append(current, s)
	}
	if len(current) > 0 {
		out = append(out, flush(key, width, current))
	}
	return out, nil
}

func flush(key int64, width time.Duration, samples []model.PriceSample) model.Bucket {
	prices := make([]float64, len(samples))
	stamps := make([]float64, len(samples))
	for i, s := range samples {
		prices[i] = s.Price
		stamps[i] = float64(s.Time.UnixNano()) / 1e9
	}
	// Non-empty by construction, so the errors are impossible.
	avg, _ := Mean(prices)
	med, _ := Median(prices)
	meanTS, _ := Mean(stamps)
	medTS, _ := Median(stamps)

	return model.Bucket{
		Key:        key,
		Start:      time.Unix(key*int64(width/time.Second), 0).UTC(),
		Samples:    samples,
		Avg:        avg,
		Median:     med,
		MeanTime:   fromUnixFloat(meanTS),
		MedianTime: fromUnixFloat(medTS),
	}
}

func fromUnixFloat(sec float64) time.Time {
	whole := int64(sec)
	return time.Unix(whole, int64((sec-float64(whole))*1e9)).UTC()
}
