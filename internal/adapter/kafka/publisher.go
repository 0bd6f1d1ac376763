package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher emits the refreshed composite series to a Kafka topic so
// downstream consumers can subscribe to updates instead of polling the API.
// It implements pipeline.CompositePublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishComposite serializes the composite series into one message. The key
// is constant so the topic, when compacted, retains only the latest series.
func (p *Publisher) PublishComposite(ctx context.Context, points []domain.WeightedPoint, refreshedAt time.Time) error {
	msg, err := compositeMessage(points, refreshedAt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// compositeMessage marshals the series into a Kafka message.
func compositeMessage(points []domain.WeightedPoint, refreshedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(points)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize composite series: %w", err)
	}
	return kafkago.Message{
		Key:   []byte("composite"),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "refreshed_at", Value: []byte(refreshedAt.Format(time.RFC3339))},
			{Key: "points", Value: []byte(strconv.Itoa(len(points)))},
		},
	}, nil
}
