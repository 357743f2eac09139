// Package notify tells downstream consumers when analytics should be
// recomputed, either in-process via log or as an event on NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Notifier signals that a sync run finished and aggregates are stale.
type Notifier interface {
	AnalyticsRefresh(runID string, orders int) error
}

// LogNotifier is the fallback when no event bus is configured.
type LogNotifier struct{}

func (LogNotifier) AnalyticsRefresh(runID string, orders int) error {
	log.Printf("analytics refresh requested run=%s orders=%d", runID, orders)
	return nil
}

// DefaultSubject is the NATS subject refresh events are published on.
const DefaultSubject = "orders.analytics.refresh"

type refreshEvent struct {
	RunID  string `json:"runId"`
	Orders int    `json:"orders"`
	At     string `json:"at"`
}

// natsPublisher abstracts nats.Conn for testability.
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSNotifier publishes refresh events to a NATS subject.
type NATSNotifier struct {
	conn    natsPublisher
	subject string
}

func NewNATSNotifier(nc *nats.Conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: nc, subject: subject}
}

func (n *NATSNotifier) AnalyticsRefresh(runID string, orders int) error {
	ev := refreshEvent{RunID: runID, Orders: orders, At: time.Now().UTC().Format(time.RFC3339)}
	b, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := n.conn.Publish(n.subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

// NewNATSNotifierWith is only for tests to inject a fake publisher.
func NewNATSNotifierWith(p natsPublisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: p, subject: subject}
}
