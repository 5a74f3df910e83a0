package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Asset struct {
		Name    string `yaml:"name"`    // display name, e.g. "BTC"
		Command string `yaml:"command"` // command stem, e.g. "btc"
		Quote   string `yaml:"quote"`   // quote currency of the ledger prices
	} `yaml:"asset"`
	Bot struct {
		Broker        string        `yaml:"broker"`
		ClientID      string        `yaml:"client_id"`
		KeepAlive     time.Duration `yaml:"keep_alive"`
		TopicPrefix   string        `yaml:"topic_prefix"`
		CommandPrefix string        `yaml:"command_prefix"`
		Channels      []string      `yaml:"channels"`
		Group         string        `yaml:"group"`
		AnnounceCron  string        `yaml:"announce_cron"`
	} `yaml:"bot"`
	Ingest struct {
		Source        string   `yaml:"source"` // mqtt, websocket or kafka
		MQTTBroker    string   `yaml:"mqtt_broker"`
		MQTTTopic     string   `yaml:"mqtt_topic"`
		WebSocketURL  string   `yaml:"websocket_url"`
		WebSocketPair string   `yaml:"websocket_pair"`
		KafkaBrokers  []string `yaml:"kafka_brokers"`
		KafkaTopic    string   `yaml:"kafka_topic"`
		KafkaGroup    string   `yaml:"kafka_group"`
	} `yaml:"ingest"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr    string        `yaml:"addr"` // empty disables metrics
		Cron    string        `yaml:"cron"`
		Prefix  string        `yaml:"prefix"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"metrics"`
	Forecast struct {
		BucketWidth time.Duration `yaml:"bucket_width"`
		HistoryRows int           `yaml:"history_rows"`
		Periods     int           `yaml:"periods"`
		ReadIndex   int           `yaml:"read_index"`
		Frequency   time.Duration `yaml:"frequency"`
		MinPoints   int           `yaml:"min_points"`
		Workers     int           `yaml:"workers"`
		QueueSize   int           `yaml:"queue_size"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"forecast"`
	Rates struct {
		URL                string        `yaml:"url"`
		Staleness          time.Duration `yaml:"staleness"`
		MinRefetchInterval time.Duration `yaml:"min_refetch_interval"`
		StateFile          string        `yaml:"state_file"`
		RedisAddr          string        `yaml:"redis_addr"`
		RedisPassword      string        `yaml:"redis_password"`
		RedisDB            int           `yaml:"redis_db"`
		RedisKey           string        `yaml:"redis_key"`
	} `yaml:"rates"`
	Stats struct {
		Window          time.Duration `yaml:"window"`
		SparklineBucket time.Duration `yaml:"sparkline_bucket"`
		QueryTimeout    time.Duration `yaml:"query_timeout"`
	} `yaml:"stats"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads an optional .env file and the YAML config, then applies environment
// variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MQTT_SERVER"); v != "" {
		c.Bot.Broker = v
	}
	if v := os.Getenv("MQTT_TICK_SERVER"); v != "" {
		c.Ingest.MQTTBroker = v
	}
	if v := os.Getenv("INGEST_SOURCE"); v != "" {
		c.Ingest.Source = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Ingest.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Rates.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Rates.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Rates.RedisDB = db
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Asset.Name == "" {
		c.Asset.Name = "BTC"
	}
	if c.Asset.Command == "" {
		c.Asset.Command = strings.ToLower(c.Asset.Name)
	}
	if c.Asset.Quote == "" {
		c.Asset.Quote = "USD"
	}

	if c.Bot.Broker == "" {
		c.Bot.Broker = "tcp://localhost:1883"
	}
	if c.Bot.ClientID == "" {
		c.Bot.ClientID = "ghbot-" + c.Asset.Command
	}
	if c.Bot.KeepAlive == 0 {
		c.Bot.KeepAlive = 30 * time.Second
	}
	if c.Bot.TopicPrefix == "" {
		c.Bot.TopicPrefix = "GHBot/"
	}
	if c.Bot.CommandPrefix == "" {
		c.Bot.CommandPrefix = "!"
	}
	if c.Bot.Group == "" {
		c.Bot.Group = c.Asset.Command
	}
	if c.Bot.AnnounceCron == "" {
		c.Bot.AnnounceCron = "@every 5s"
	}

	if c.Ingest.Source == "" {
		c.Ingest.Source = "mqtt"
	}
	if c.Ingest.MQTTBroker == "" {
		c.Ingest.MQTTBroker = c.Bot.Broker
	}
	if c.Ingest.MQTTTopic == "" {
		c.Ingest.MQTTTopic = "vanheusden/bitcoin/bitstamp_usd"
	}
	if c.Ingest.WebSocketURL == "" {
		c.Ingest.WebSocketURL = "wss://ws.bitstamp.net"
	}
	if c.Ingest.WebSocketPair == "" {
		c.Ingest.WebSocketPair = strings.ToLower(c.Asset.Command + c.Asset.Quote)
	}
	if c.Ingest.KafkaTopic == "" {
		c.Ingest.KafkaTopic = "price_ticks"
	}
	if c.Ingest.KafkaGroup == "" {
		c.Ingest.KafkaGroup = "ghbot-" + c.Asset.Command
	}

	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/" + c.Asset.Command + ".db"
	}

	if c.Metrics.Cron == "" {
		c.Metrics.Cron = "@every 1m"
	}
	if c.Metrics.Prefix == "" {
		c.Metrics.Prefix = strings.ToLower(c.Asset.Command + "_" + c.Asset.Quote)
	}
	if c.Metrics.Timeout == 0 {
		c.Metrics.Timeout = 5 * time.Second
	}

	if c.Forecast.BucketWidth == 0 {
		c.Forecast.BucketWidth = 5 * time.Minute
	}
	if c.Forecast.HistoryRows == 0 {
		c.Forecast.HistoryRows = 20000
	}
	if c.Forecast.Periods == 0 {
		c.Forecast.Periods = 21
	}
	if c.Forecast.ReadIndex == 0 {
		c.Forecast.ReadIndex = 1
	}
	if c.Forecast.Frequency == 0 {
		c.Forecast.Frequency = 24 * time.Hour
	}
	if c.Forecast.MinPoints == 0 {
		c.Forecast.MinPoints = 20
	}
	if c.Forecast.Workers == 0 {
		c.Forecast.Workers = 1
	}
	if c.Forecast.QueueSize == 0 {
		c.Forecast.QueueSize = 4
	}
	if c.Forecast.Timeout == 0 {
		c.Forecast.Timeout = 5 * time.Minute
	}

	if c.Rates.URL == "" {
		c.Rates.URL = "https://blockchain.info/ticker"
	}
	if c.Rates.Staleness == 0 {
		c.Rates.Staleness = 15 * time.Minute
	}
	if c.Rates.MinRefetchInterval == 0 {
		c.Rates.MinRefetchInterval = 30 * time.Second
	}
	if c.Rates.RedisKey == "" {
		c.Rates.RedisKey = "ghbot:" + c.Asset.Command + ":rates"
	}

	if c.Stats.Window == 0 {
		c.Stats.Window = 24 * time.Hour
	}
	if c.Stats.SparklineBucket == 0 {
		c.Stats.SparklineBucket = time.Hour
	}
	if c.Stats.QueryTimeout == 0 {
		c.Stats.QueryTimeout = 30 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Bot.Broker == "" {
		return fmt.Errorf("bot.broker is required")
	}
	if !strings.HasSuffix(c.Bot.TopicPrefix, "/") {
		return fmt.Errorf("bot.topic_prefix must end with '/'")
	}
	switch c.Ingest.Source {
	case "mqtt":
		if c.Ingest.MQTTTopic == "" {
			return fmt.Errorf("ingest.mqtt_topic is required for the mqtt source")
		}
	case "websocket":
		if c.Ingest.WebSocketURL == "" || c.Ingest.WebSocketPair == "" {
			return fmt.Errorf("ingest.websocket_url and ingest.websocket_pair are required for the websocket source")
		}
	case "kafka":
		if len(c.Ingest.KafkaBrokers) == 0 || c.Ingest.KafkaTopic == "" {
			return fmt.Errorf("ingest.kafka_brokers and ingest.kafka_topic are required for the kafka source")
		}
	default:
		return fmt.Errorf("ingest.source %q is not one of mqtt, websocket, kafka", c.Ingest.Source)
	}
	if c.Forecast.BucketWidth < time.Second {
		return fmt.Errorf("forecast.bucket_width must be at least 1s")
	}
	if c.Forecast.Periods < 1 {
		return fmt.Errorf("forecast.periods must be positive")
	}
	if c.Forecast.ReadIndex < 1 || c.Forecast.ReadIndex > c.Forecast.Periods {
		return fmt.Errorf("forecast.read_index must be between 1 and forecast.periods (%d)", c.Forecast.Periods)
	}
	if c.Forecast.HistoryRows < c.Forecast.MinPoints {
		return fmt.Errorf("forecast.history_rows must be at least forecast.min_points")
	}
	if c.Forecast.Workers < 1 || c.Forecast.QueueSize < 0 {
		return fmt.Errorf("forecast.workers must be positive and forecast.queue_size not negative")
	}
	if c.Rates.Staleness <= 0 {
		return fmt.Errorf("rates.staleness must be positive")
	}
	if c.Stats.Window <= 0 || c.Stats.SparklineBucket <= 0 {
		return fmt.Errorf("stats.window and stats.sparkline_bucket must be positive")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
