package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// KafkaSource consumes ticks from a topic as a member of a consumer group.
type KafkaSource struct {
	reader *kafka.Reader
}

// NewKafkaSource creates a KafkaSource.
func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  time.Second,
		}),
	}
}

func (s *KafkaSource) Name() string { return "kafka:" + s.reader.Config().Topic }

// Run fetches, records and commits messages until ctx is done.
func (s *KafkaSource) Run(ctx context.Context, rec Recorder) error {
	defer func() {
		if err := s.reader.Close(); err != nil {
			log.Errorf("close kafka reader: %v", err)
		}
	}()
	log.Infof("kafka consumer started: topic %s, group %s", s.reader.Config().Topic, s.reader.Config().GroupID)

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("fetch kafka message: %v", err)
			continue
		}

		tick, err := ParseKafkaValue(m.Value, m.Time)
		if err != nil {
			log.Warnf("kafka offset %d: %v", m.Offset, err)
		} else if err := rec.Record(ctx, tick.Price, tick.Time); err != nil {
			log.Errorf("record tick: %v", err)
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Errorf("commit kafka offset %d: %v", m.Offset, err)
		}
	}
}

type kafkaTick struct {
	Price     *float64 `json:"price"`
	Timestamp int64    `json:"timestamp"`
}

// ParseKafkaValue decodes a bare price or a {"price":..., "timestamp":...} object.
// Without a timestamp the message time is used.
func ParseKafkaValue(value []byte, msgTime time.Time) (*model.PriceSample, error) {
	v := bytes.TrimSpace(value)
	if len(v) > 0 && v[0] == '{' {
		var kt kafkaTick
		if err := json.Unmarshal(v, &kt); err != nil {
			return nil, fmt.Errorf("decode tick: %w", err)
		}
		if kt.Price == nil {
			return nil, fmt.Errorf("tick without price: %s", v)
		}
		at := msgTime
		if kt.Timestamp > 0 {
			at = time.Unix(kt.Timestamp, 0)
		}
		return &model.PriceSample{Time: at, Price: *kt.Price}, nil
	}

	price, err := ParsePrice(string(v))
	if err != nil {
		return nil, err
	}
	return &model.PriceSample{Time: msgTime, Price: price}, nil
}
