package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"MQTT_SERVER", "MQTT_TICK_SERVER", "INGEST_SOURCE", "KAFKA_BROKERS", "SQLITE_PATH",
	"METRICS_ADDR", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "HTTPS_PROXY", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"asset", cfg.Asset.Name, "BTC"},
		{"command", cfg.Asset.Command, "btc"},
		{"topic prefix", cfg.Bot.TopicPrefix, "GHBot/"},
		{"command prefix", cfg.Bot.CommandPrefix, "!"},
		{"group", cfg.Bot.Group, "btc"},
		{"tick broker", cfg.Ingest.MQTTBroker, cfg.Bot.Broker},
		{"tick topic", cfg.Ingest.MQTTTopic, "vanheusden/bitcoin/bitstamp_usd"},
		{"websocket pair", cfg.Ingest.WebSocketPair, "btcusd"},
		{"metrics prefix", cfg.Metrics.Prefix, "btc_usd"},
		{"metrics cron", cfg.Metrics.Cron, "@every 1m"},
		{"bucket width", cfg.Forecast.BucketWidth, 5 * time.Minute},
		{"history rows", cfg.Forecast.HistoryRows, 20000},
		{"periods", cfg.Forecast.Periods, 21},
		{"read index", cfg.Forecast.ReadIndex, 1},
		{"staleness", cfg.Rates.Staleness, 15 * time.Minute},
		{"rates url", cfg.Rates.URL, "https://blockchain.info/ticker"},
		{"window", cfg.Stats.Window, 24 * time.Hour},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("metrics should be disabled by default, addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
asset:
  name: ETH
bot:
  broker: tcp://bus:1883
  channels: ["#crypto", "#eth"]
ingest:
  source: kafka
  kafka_brokers: [k1:9092]
forecast:
  bucket_width: 10m
  periods: 7
  read_index: 7
stats:
  window: 12h
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLITE_PATH", "/tmp/eth.db")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Asset.Command != "eth" || cfg.Metrics.Prefix != "eth_usd" {
		t.Errorf("derived names = %q / %q", cfg.Asset.Command, cfg.Metrics.Prefix)
	}
	if cfg.Bot.Broker != "tcp://bus:1883" || cfg.Ingest.MQTTBroker != "tcp://bus:1883" {
		t.Errorf("brokers = %q / %q", cfg.Bot.Broker, cfg.Ingest.MQTTBroker)
	}
	if strings.Join(cfg.Bot.Channels, ",") != "#crypto,#eth" {
		t.Errorf("channels = %v", cfg.Bot.Channels)
	}
	if strings.Join(cfg.Ingest.KafkaBrokers, ",") != "a:9092,b:9092" {
		t.Errorf("kafka brokers = %v", cfg.Ingest.KafkaBrokers)
	}
	if cfg.Database.SQLitePath != "/tmp/eth.db" {
		t.Errorf("sqlite path = %q", cfg.Database.SQLitePath)
	}
	if cfg.Forecast.BucketWidth != 10*time.Minute || cfg.Forecast.ReadIndex != 7 || cfg.Stats.Window != 12*time.Hour {
		t.Errorf("durations not parsed: %+v %+v", cfg.Forecast, cfg.Stats)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bot: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"unknown source", func(c *Config) { c.Ingest.Source = "carrier-pigeon" }, "ingest.source"},
		{"kafka without brokers", func(c *Config) { c.Ingest.Source = "kafka"; c.Ingest.KafkaBrokers = nil }, "kafka_brokers"},
		{"read index beyond periods", func(c *Config) { c.Forecast.ReadIndex = 22 }, "read_index"},
		{"tiny bucket", func(c *Config) { c.Forecast.BucketWidth = time.Millisecond }, "bucket_width"},
		{"prefix without slash", func(c *Config) { c.Bot.TopicPrefix = "GHBot" }, "topic_prefix"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		tt.mutate(cfg)
		err = cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.errSub) {
			t.Errorf("%s: err = %v, want mention of %q", tt.name, err, tt.errSub)
		}
	}
}
