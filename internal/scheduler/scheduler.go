package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/metrics"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// Announcer publishes the bot's command descriptors.
type Announcer interface {
	Announce() error
}

// LinearSource produces the linear forecast.
type LinearSource interface {
	Linear(ctx context.Context) (*model.LinearForecast, error)
}

// SeasonalSource produces the seasonal forecast.
type SeasonalSource interface {
	Forecast(ctx context.Context) (*model.SeasonalForecast, error)
}

// MetricPusher forwards metric lines to a collector.
type MetricPusher interface {
	Push(ctx context.Context, lines ...metrics.Line) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Announcer  Announcer
	Linear     LinearSource
	Seasonal   SeasonalSource
	Metrics    MetricPusher // nil disables the metrics task
	Prefix     string       // metric name prefix, e.g. "btc_usd"
	JobTimeout time.Duration
	Ctx        context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, ann Announcer, lin LinearSource, seas SeasonalSource, mp MetricPusher, prefix string) *Scheduler {
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger()))),
		),
		Announcer:  ann,
		Linear:     lin,
		Seasonal:   seas,
		Metrics:    mp,
		Prefix:     prefix,
		JobTimeout: 5 * time.Minute,
		Ctx:        ctx,
	}
}

// RegisterAll registers the announce task and, when metrics are enabled, the metrics task.
func (s *Scheduler) RegisterAll(announceCron, metricsCron string) error {
	if _, err := s.Cron.AddFunc(announceCron, s.announceTask); err != nil {
		return fmt.Errorf("register announce task: %w", err)
	}
	if s.Metrics == nil {
		log.Info("metrics disabled, not scheduling forecast metrics")
		return nil
	}
	if _, err := s.Cron.AddFunc(metricsCron, s.metricsTask); err != nil {
		return fmt.Errorf("register metrics task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info("scheduler stopped")
}

// RunAnnounceNow publishes the descriptors immediately.
func (s *Scheduler) RunAnnounceNow() {
	s.announceTask()
}

func (s *Scheduler) announceTask() {
	if err := s.Announcer.Announce(); err != nil {
		log.Errorf("announce: %v", err)
	}
}

func (s *Scheduler) metricsTask() {
	ctx, cancel := context.WithTimeout(s.Ctx, s.JobTimeout)
	defer cancel()

	lines := s.forecastLines(ctx)
	if len(lines) == 0 {
		return
	}
	if err := s.Metrics.Push(ctx, lines...); err != nil {
		log.Errorf("push forecast metrics: %v", err)
		return
	}
	log.Debugf("pushed %d forecast metrics", len(lines))
}

// forecastLines computes whichever forecasts succeed; failures are logged and skipped.
// Each line is stamped with the instant its forecast is for.
func (s *Scheduler) forecastLines(ctx context.Context) []metrics.Line {
	var lines []metrics.Line

	if sf, err := s.Seasonal.Forecast(ctx); err != nil {
		log.Warnf("seasonal forecast for metrics: %v", err)
	} else {
		lines = append(lines,
			metrics.Line{Name: s.Prefix + "_seasonal_avg", Value: sf.Average.Value, Time: sf.Average.At},
			metrics.Line{Name: s.Prefix + "_seasonal_median", Value: sf.Median.Value, Time: sf.Median.At},
		)
	}

	if lf, err := s.Linear.Linear(ctx); err != nil {
		log.Warnf("linear forecast for metrics: %v", err)
	} else {
		lines = append(lines,
			metrics.Line{Name: s.Prefix + "_plin_avg", Value: lf.Trend.Value, Time: lf.Trend.At},
			metrics.Line{Name: s.Prefix + "_plin_median", Value: lf.Median.Value, Time: lf.Median.At},
		)
	}
	return lines
}
