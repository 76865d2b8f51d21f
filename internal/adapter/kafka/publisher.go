// Package kafka publishes completed identifications to a Kafka topic for
// downstream analytics. Publishing is optional and best-effort; the
// identify pipeline never blocks on it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/building-lens/internal/domain"
	"github.com/couchcryptid/building-lens/internal/observability"
)

// Publisher produces identification events to a Kafka topic.
// It implements identify.EventPublisher.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the events topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish serializes and writes one identification result.
func (p *Publisher) Publish(ctx context.Context, result *domain.Result) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("write identify event: %w", err)
	}
	p.metrics.EventsPublished.WithLabelValues("success").Inc()
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Result into a Kafka message. The key is the
// result-cache key of the query, so events for the same rounded location
// land on the same partition.
func serializeToMessage(result *domain.Result) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize identify result: %w", err)
	}

	topSource := ""
	if len(result.Candidates) > 0 {
		topSource = string(result.Candidates[0].Source)
	}
	return kafkago.Message{
		Key:   []byte(domain.ResultCacheKey(result.SearchCenter, result.Heading, result.SearchRadius)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "top_source", Value: []byte(topSource)},
			{Key: "candidate_count", Value: []byte(strconv.Itoa(len(result.Candidates)))},
			{Key: "identified_at", Value: []byte(result.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
