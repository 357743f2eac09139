package apisync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Handler receives each decoded payload delivery. A payload may repeat ids
// seen in earlier deliveries; the write gate makes that harmless.
type Handler func(ctx context.Context, p Payload)

// messagePoller abstracts ck.Consumer for testability.
type messagePoller interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
	Close() error
}

// Consumer reads structured payload batches from a Kafka topic.
type Consumer struct {
	poller messagePoller
	topic  string
}

func NewConsumer(bootstrap, groupID, topic string) (*Consumer, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"enable.auto.commit": true,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &Consumer{poller: c, topic: topic}, nil
}

func (c *Consumer) Close() error { return c.poller.Close() }

// Run polls for payloads until ctx is canceled. A malformed message or failed
// poll is logged and skipped; it never aborts the loop.
func (c *Consumer) Run(ctx context.Context, handle Handler) {
	log.Printf("apisync consumer started topic=%s", c.topic)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, err := c.poller.ReadMessage(time.Second)
		if err != nil {
			if isPollTimeout(err) {
				continue
			}
			log.Printf("apisync: poll failed: %v", err)
			continue
		}
		var p Payload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			log.Printf("apisync: bad payload skipped: %v", err)
			continue
		}
		handle(ctx, p)
	}
}

// isPollTimeout reports whether err is the poll deadline expiring with no
// message, as opposed to a broker problem worth logging.
func isPollTimeout(err error) bool {
	var kerr ck.Error
	return errors.As(err, &kerr) && kerr.IsTimeout()
}

// NewConsumerWith is only for tests to inject a fake poller.
func NewConsumerWith(p messagePoller, topic string) *Consumer {
	return &Consumer{poller: p, topic: topic}
}
