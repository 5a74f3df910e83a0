package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// ErrThrottled is returned when a refresh is needed, refetching is rate limited
// and no earlier snapshot exists.
var ErrThrottled = errors.New("exchange rate refresh throttled")

// UnknownCurrencyError lists the codes that are available.
type UnknownCurrencyError struct {
	Code  string
	Known []string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("Currency %s is not known, use one of: %s", e.Code, strings.Join(e.Known, ", "))
}

// Service caches an ExchangeRateSnapshot and refreshes it once it is older than MaxAge.
// Fetching happens outside the lock; two callers racing on a stale snapshot may both
// refetch, which is harmless.
type Service struct {
	Fetcher Fetcher
	Store   Store // optional
	MaxAge  time.Duration

	limiter *rate.Limiter

	mu     sync.Mutex
	snap   *model.ExchangeRateSnapshot
	loaded bool
}

// NewService creates a Service that refetches at most once per minInterval.
func NewService(f Fetcher, store Store, maxAge, minInterval time.Duration) *Service {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Service{
		Fetcher: f,
		Store:   store,
		MaxAge:  maxAge,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// GetOrRefresh returns the cached snapshot, fetching a new one when it is stale at now.
func (s *Service) GetOrRefresh(ctx context.Context, now time.Time) (*model.ExchangeRateSnapshot, error) {
	snap := s.cached(ctx)
	if !snap.Stale(now, s.MaxAge) {
		return snap, nil
	}

	if !s.limiter.AllowN(now, 1) {
		if snap != nil {
			log.Warnf("exchange rates stale since %s, refresh throttled", snap.FetchedAt.Format(time.RFC3339))
			return snap, nil
		}
		return nil, model.Dependency("exchange rates", ErrThrottled)
	}

	rates, err := s.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, model.Dependency("Failed updating exchange rates", err)
	}
	fresh := &model.ExchangeRateSnapshot{Rates: rates, FetchedAt: now}

	s.mu.Lock()
	s.snap = fresh
	s.mu.Unlock()

	if s.Store != nil {
		if err := s.Store.Save(ctx, fresh); err != nil {
			log.Warnf("save exchange rates: %v", err)
		}
	}
	log.Infof("exchange rates refreshed: %d currencies", len(rates))
	return fresh, nil
}

// Convert prices amount units of the asset in the given currency.
func (s *Service) Convert(ctx context.Context, now time.Time, amount decimal.Decimal, code string) (decimal.Decimal, error) {
	snap, err := s.GetOrRefresh(ctx, now)
	if err != nil {
		return decimal.Zero, err
	}
	code = strings.ToUpper(code)
	r, ok := snap.Rates[code]
	if !ok {
		return decimal.Zero, model.Validation("", &UnknownCurrencyError{Code: code, Known: snap.Codes()})
	}
	return amount.Mul(decimal.NewFromFloat(r)), nil
}

func (s *Service) cached(ctx context.Context) *model.ExchangeRateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded && s.Store != nil {
		s.loaded = true
		snap, err := s.Store.Load(ctx)
		if err != nil {
			log.Warnf("load exchange rates: %v", err)
		} else if snap != nil {
			s.snap = snap
		}
	}
	return s.snap
}
