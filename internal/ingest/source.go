package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/folkertvanheusden/GHBot-BTC/internal/notifier"
)

// Source delivers ticks to a Recorder until ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, rec Recorder) error
}

// ParsePrice parses a bare decimal price.
func ParsePrice(payload string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", payload, err)
	}
	return v, nil
}

// Subscriber is the part of the bus client a tick topic needs.
type Subscriber interface {
	Subscribe(topic string, h notifier.MessageHandler) error
}

// MQTTSource reads ticks published as bare prices on one topic.
type MQTTSource struct {
	Bus   Subscriber
	Topic string
}

// NewMQTTSource creates an MQTTSource.
func NewMQTTSource(bus Subscriber, topic string) *MQTTSource {
	return &MQTTSource{Bus: bus, Topic: topic}
}

func (s *MQTTSource) Name() string { return "mqtt:" + s.Topic }

// Run subscribes and records every tick until ctx is done.
func (s *MQTTSource) Run(ctx context.Context, rec Recorder) error {
	err := s.Bus.Subscribe(s.Topic, func(_, payload string) {
		price, err := ParsePrice(payload)
		if err != nil {
			log.Warnf("tick on %s: %v", s.Topic, err)
			return
		}
		if err := rec.Record(ctx, price, time.Time{}); err != nil {
			log.Errorf("record tick: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Topic, err)
	}
	<-ctx.Done()
	return nil
}
