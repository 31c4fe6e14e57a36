// Package events publishes transcription lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"media-transcription-proxy/internal/models"
	"media-transcription-proxy/internal/observability/metrics"
)

// Publisher writes accepted and completed events to separate Kafka topics.
// When Kafka is disabled events are only logged.
type Publisher struct {
	writerAccepted  *kafka.Writer
	writerCompleted *kafka.Writer
	principal       string
	topicAccepted   string
	topicCompleted  string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicAccepted  string
	TopicCompleted string
	Principal      string
	Enabled        bool
}

// New creates a publisher. A nil metrics falls back to metrics.DefaultMetrics.
func New(cfg *Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: m}
	}

	p := &Publisher{
		principal:      cfg.Principal,
		topicAccepted:  cfg.TopicAccepted,
		topicCompleted: cfg.TopicCompleted,
		metrics:        m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	p.writerAccepted = newWriter(cfg.Brokers, cfg.TopicAccepted, transport)
	p.writerCompleted = newWriter(cfg.Brokers, cfg.TopicCompleted, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicAccepted", cfg.TopicAccepted).
		Str("topicCompleted", cfg.TopicCompleted).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishAccepted records that the provider accepted an asynchronous task.
func (p *Publisher) PublishAccepted(ctx context.Context, ev models.TranscriptionAccepted) error {
	if ev.EventType == "" {
		ev.EventType = models.EventTypeAccepted
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return p.publish(ctx, p.writerAccepted, p.topicAccepted, ev.EventType, ev.ResultID, ev)
}

// PublishCompleted records that a callback result was stored.
func (p *Publisher) PublishCompleted(ctx context.Context, ev models.TranscriptionCompleted) error {
	if ev.EventType == "" {
		ev.EventType = models.EventTypeCompleted
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return p.publish(ctx, p.writerCompleted, p.topicCompleted, ev.EventType, ev.ResultID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerAccepted != nil {
		if e := p.writerAccepted.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing accepted writer")
			err = e
		}
	}
	if p.writerCompleted != nil {
		if e := p.writerCompleted.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing completed writer")
			err = e
		}
	}
	return err
}
