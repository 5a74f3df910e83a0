package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/analyzer"
	"github.com/folkertvanheusden/GHBot-BTC/internal/config"
	"github.com/folkertvanheusden/GHBot-BTC/internal/dispatcher"
	"github.com/folkertvanheusden/GHBot-BTC/internal/forecast"
	"github.com/folkertvanheusden/GHBot-BTC/internal/ingest"
	"github.com/folkertvanheusden/GHBot-BTC/internal/ledger"
	"github.com/folkertvanheusden/GHBot-BTC/internal/metrics"
	"github.com/folkertvanheusden/GHBot-BTC/internal/notifier"
	"github.com/folkertvanheusden/GHBot-BTC/internal/rates"
	"github.com/folkertvanheusden/GHBot-BTC/internal/scheduler"
	"github.com/folkertvanheusden/GHBot-BTC/internal/worker"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("GHBot-BTC starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	level, _ := log.ParseLevel(cfg.Log.Level)
	log.SetLevel(level)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init ledger
	var l ledger.Ledger
	sl, err := ledger.NewSQLiteLedger(cfg.Database.SQLitePath)
	if err != nil {
		log.Warnf("init sqlite ledger failed, using in-memory ledger: %v", err)
		l = ledger.NewMemoryLedger()
	} else {
		l = sl
	}
	defer l.Close()

	// Init metrics
	var mp ingest.MetricPusher
	if cfg.Metrics.Addr != "" {
		mp = metrics.NewPusher(cfg.Metrics.Addr, cfg.Metrics.Timeout)
		log.Infof("metrics enabled: %s", cfg.Metrics.Addr)
	}

	// Init statistics and forecasting
	an := analyzer.NewAnalyzer(l, cfg.Stats.Window, cfg.Stats.SparklineBucket)
	fc, err := forecast.NewForecaster(l, func() forecast.Model {
		return forecast.NewSeasonalRegression(cfg.Forecast.MinPoints)
	}, forecast.Settings{
		BucketWidth: cfg.Forecast.BucketWidth,
		HistoryRows: cfg.Forecast.HistoryRows,
		Periods:     cfg.Forecast.Periods,
		ReadIndex:   cfg.Forecast.ReadIndex,
		Frequency:   cfg.Forecast.Frequency,
	})
	if err != nil {
		log.Fatalf("init forecaster: %v", err)
	}

	pool := worker.NewPool(cfg.Forecast.Workers, cfg.Forecast.QueueSize, cfg.Forecast.Timeout)
	pool.Start(ctx)
	defer pool.Stop()

	// Init exchange rates
	var store rates.Store
	switch {
	case cfg.Rates.RedisAddr != "":
		rs, err := rates.NewRedisStore(cfg.Rates.RedisAddr, cfg.Rates.RedisPassword, cfg.Rates.RedisDB, cfg.Rates.RedisKey, cfg.Rates.Staleness)
		if err != nil {
			log.Warnf("init redis rate store failed, rates kept in memory only: %v", err)
		} else {
			store = rs
			defer rs.Close()
		}
	case cfg.Rates.StateFile != "":
		store = &rates.FileStore{Path: cfg.Rates.StateFile}
	}
	rateSvc := rates.NewService(rates.NewTickerFetcher(cfg.Rates.URL, cfg.Proxy), store, cfg.Rates.Staleness, cfg.Rates.MinRefetchInterval)

	// Init bus and dispatcher
	bus := notifier.NewMQTTNotifier(cfg.Bot.Broker, cfg.Bot.ClientID, cfg.Bot.KeepAlive)
	defer bus.Close()

	replies := &notifier.Formatter{Asset: cfg.Asset.Name, Quote: cfg.Asset.Quote, Location: time.Local}
	disp := dispatcher.New(ctx, dispatcher.Config{
		TopicPrefix:   cfg.Bot.TopicPrefix,
		CommandPrefix: cfg.Bot.CommandPrefix,
		Channels:      cfg.Bot.Channels,
		Group:         cfg.Bot.Group,
		Command:       cfg.Asset.Command,
		Horizon:       cfg.Stats.Window,
		BucketWidth:   cfg.Forecast.BucketWidth,
		QueryTimeout:  cfg.Stats.QueryTimeout,
	}, bus, an, fc, rateSvc, pool, replies)

	for _, topic := range disp.Topics() {
		if err := bus.Subscribe(topic, disp.HandleMessage); err != nil {
			log.Fatalf("subscribe %s: %v", topic, err)
		}
	}
	if err := bus.Connect(ctx); err != nil {
		log.Fatalf("connect to %s: %v", cfg.Bot.Broker, err)
	}
	log.Infof("connected to %s", cfg.Bot.Broker)

	// Init tick ingestion
	ing := ingest.NewIngester(l, mp, cfg.Metrics.Prefix)
	var src ingest.Source
	switch cfg.Ingest.Source {
	case "websocket":
		src = ingest.NewWebSocketSource(cfg.Ingest.WebSocketURL, cfg.Ingest.WebSocketPair)
	case "kafka":
		src = ingest.NewKafkaSource(cfg.Ingest.KafkaBrokers, cfg.Ingest.KafkaTopic, cfg.Ingest.KafkaGroup)
	default:
		tickBus := bus
		if cfg.Ingest.MQTTBroker != cfg.Bot.Broker {
			tickBus = notifier.NewMQTTNotifier(cfg.Ingest.MQTTBroker, cfg.Bot.ClientID+"-ticks", cfg.Bot.KeepAlive)
			if err := tickBus.Connect(ctx); err != nil {
				log.Fatalf("connect to %s: %v", cfg.Ingest.MQTTBroker, err)
			}
			defer tickBus.Close()
		}
		src = ingest.NewMQTTSource(tickBus, cfg.Ingest.MQTTTopic)
	}
	go func() {
		log.Infof("tick source: %s", src.Name())
		if err := src.Run(ctx, ing); err != nil {
			log.Errorf("tick source %s stopped: %v", src.Name(), err)
		}
	}()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, disp, an, fc, mp, cfg.Metrics.Prefix)
	sched.JobTimeout = cfg.Forecast.Timeout
	if err := sched.RegisterAll(cfg.Bot.AnnounceCron, cfg.Metrics.Cron); err != nil {
		log.Fatalf("register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()
	sched.RunAnnounceNow()

	log.Info("GHBot-BTC is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	cancel()
}
