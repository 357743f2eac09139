package apisync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// PayloadWriter publishes payload batches to a Kafka topic. Pure-Go client
// (segmentio/kafka-go); used by the sample generator and soak tooling.
type PayloadWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewPayloadWriter creates a payload writer. bootstrap can be a
// comma-separated list of host:port.
func NewPayloadWriter(bootstrap string, topic string) *PayloadWriter {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return &PayloadWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// Publish writes one payload batch, keyed by the first order id so repeated
// deliveries of a batch land on the same partition.
func (w *PayloadWriter) Publish(ctx context.Context, p Payload) error {
	b, err := json.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	var key []byte
	if len(p.Orders) > 0 {
		key = []byte(p.Orders[0].OrderID)
	}
	return w.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: b})
}

// NewPayloadWriterWith is only for tests to inject a fake writer.
func NewPayloadWriterWith(w kafkaMessageWriter) *PayloadWriter {
	return &PayloadWriter{writer: w}
}
