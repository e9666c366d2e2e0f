package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/tourkit/address-resolver/internal/config"
	"github.com/tourkit/address-resolver/internal/domain"
)

// Writer publishes resolved stops to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes a batch of stops in a single
// WriteMessages call. Keys are stop IDs, so re-resolved stops land on the
// same partition and compact cleanly.
func (w *Writer) LoadBatch(ctx context.Context, stops []domain.Stop) error {
	if len(stops) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(stops))
	for i := range stops {
		msg, err := serializeToMessage(stops[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a stop's wire payload into a Kafka message.
func serializeToMessage(stop domain.Stop) (kafkago.Message, error) {
	data, err := json.Marshal(stop.Payload())
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize stop %s: %w", stop.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(stop.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(stop.Status)},
			{Key: "geo_source", Value: []byte(stop.GeoSource)},
		},
	}, nil
}
