package apisync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"ordertrack/internal/model"
)

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	old := Now
	t.Cleanup(func() { Now = old })
	now := time.Date(2025, 8, 29, 10, 0, 0, 0, time.Local)
	Now = func() time.Time { return now }
	return now
}

func TestNormalize_FullPayload(t *testing.T) {
	fixedNow(t)
	raw := RawOrder{
		OrderID:         "1234567890",
		OrderTime:       "2025-08-25T18:55:00+05:30",
		DeliveryTime:    "2025-08-25T19:45:00+05:30",
		OrderPlacedTime: "2025-08-25T18:53:00+05:30",
		RestaurantName:  "Biryani Blues",
		OrderTotal:      540.5,
		OrderStatus:     "delivered",
		OrderItems: []RawItem{
			{Name: "Chicken Biryani", Quantity: 1},
			{Name: "Garlic Naan", Quantity: 2},
		},
	}
	o := Normalize(raw)

	if o.ID != "1234567890" || o.Restaurant != "Biryani Blues" {
		t.Fatalf("bad identity: %+v", o)
	}
	if o.Source != model.SourceAPI {
		t.Fatalf("want api source, got %s", o.Source)
	}
	if o.Total != 540.5 || o.Status != "delivered" {
		t.Fatalf("bad total/status: %+v", o)
	}
	if len(o.Items) != 2 || o.Items[1].Quantity != 2 {
		t.Fatalf("bad items: %+v", o.Items)
	}

	want, _ := time.Parse(time.RFC3339, "2025-08-25T18:55:00+05:30")
	if o.Date != o.TimeData.OrderTime {
		t.Fatalf("primary date should be the order time: %s vs %s", o.Date, o.TimeData.OrderTime)
	}
	if o.Timestamp != want.UnixMilli() {
		t.Fatalf("bad timestamp: %d want %d", o.Timestamp, want.UnixMilli())
	}
	if o.TimeData.DeliveryTimestamp == 0 || o.TimeData.PlacedTimestamp == 0 {
		t.Fatalf("secondary timestamps missing: %+v", o.TimeData)
	}
}

func TestNormalize_DatePriority(t *testing.T) {
	fixedNow(t)
	raw := RawOrder{
		OrderID:         "1",
		OrderPlacedTime: "2025-08-20T12:00:00Z",
		DeliveryTime:    "2025-08-20T12:40:00Z",
	}
	o := Normalize(raw)
	if o.Date != o.TimeData.PlacedTime {
		t.Fatalf("placed time should win without order time: %s", o.Date)
	}

	raw.OrderPlacedTime = ""
	o = Normalize(raw)
	if o.Date != o.TimeData.DeliveryTime {
		t.Fatalf("delivery time should be the last resort: %s", o.Date)
	}
}

func TestNormalize_FallsBackToNow(t *testing.T) {
	now := fixedNow(t)
	o := Normalize(RawOrder{OrderID: "2", OrderTime: "yesterday-ish"})
	if o.Date != now.Format(time.RFC3339) || o.Timestamp != now.UnixMilli() {
		t.Fatalf("want now fallback, got %s/%d", o.Date, o.Timestamp)
	}
	if o.TimeData.OrderTime != "" {
		t.Fatalf("garbage time should be dropped: %+v", o.TimeData)
	}
}

func TestNormalize_BareDateLayout(t *testing.T) {
	fixedNow(t)
	o := Normalize(RawOrder{OrderID: "3", OrderTime: "2025-07-04"})
	want := time.Date(2025, 7, 4, 0, 0, 0, 0, time.Local)
	if o.Timestamp != want.UnixMilli() {
		t.Fatalf("bare date layout: got %d want %d", o.Timestamp, want.UnixMilli())
	}
}

type fakeKafkaWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestPayloadWriter_Publish(t *testing.T) {
	fake := &fakeKafkaWriter{}
	w := NewPayloadWriterWith(fake)

	p := Payload{Orders: []RawOrder{{OrderID: "1234567890"}, {OrderID: "222"}}}
	if err := w.Publish(context.Background(), p); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fake.msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(fake.msgs))
	}
	if string(fake.msgs[0].Key) != "1234567890" {
		t.Fatalf("bad key: %s", fake.msgs[0].Key)
	}
	var got Payload
	if err := json.Unmarshal(fake.msgs[0].Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Orders) != 2 || got.Orders[1].OrderID != "222" {
		t.Fatalf("bad payload round trip: %+v", got)
	}
}

func TestPayloadWriter_PublishError(t *testing.T) {
	wantErr := errors.New("broker down")
	w := NewPayloadWriterWith(&fakeKafkaWriter{err: wantErr})
	if err := w.Publish(context.Background(), Payload{}); !errors.Is(err, wantErr) {
		t.Fatalf("want broker error, got %v", err)
	}
}
