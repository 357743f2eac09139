// Package apisync ingests the structured payload channel: raw order objects
// delivered any number of times, normalized into canonical records.
package apisync

import (
	"time"

	"ordertrack/internal/model"
)

// Now is the clock used for fallback dates and savedAt bookkeeping. Split for
// testability.
var Now = func() time.Time { return time.Now() }

// RawItem is one item line as delivered by the payload.
type RawItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
}

// RawOrder is the structured payload shape for a single order. Every field
// except the id is optional.
type RawOrder struct {
	OrderID               string    `json:"order_id"`
	OrderTime             string    `json:"order_time,omitempty"`
	DeliveryTime          string    `json:"delivery_time,omitempty"`
	OrderPlacedTime       string    `json:"order_placed_time,omitempty"`
	EstimatedDeliveryTime string    `json:"estimated_delivery_time,omitempty"`
	RestaurantName        string    `json:"restaurant_name,omitempty"`
	OrderTotal            float64   `json:"order_total,omitempty"`
	OrderStatus           string    `json:"order_status,omitempty"`
	OrderItems            []RawItem `json:"order_items,omitempty"`
}

// Payload is one delivery from the structured-payload collaborator.
type Payload struct {
	Orders []RawOrder `json:"orders"`
}

// Normalize maps a raw payload order to a canonical record. It never fails:
// absent fields are simply omitted, and the primary date falls back to the
// current time when no timestamp is present.
func Normalize(raw RawOrder) model.Order {
	now := Now()
	var td model.TimeData
	if t, ok := parseISO(raw.OrderTime); ok {
		td.OrderTime = t.Format(time.RFC3339)
		td.OrderTimestamp = t.UnixMilli()
	}
	if t, ok := parseISO(raw.DeliveryTime); ok {
		td.DeliveryTime = t.Format(time.RFC3339)
		td.DeliveryTimestamp = t.UnixMilli()
	}
	if t, ok := parseISO(raw.OrderPlacedTime); ok {
		td.PlacedTime = t.Format(time.RFC3339)
		td.PlacedTimestamp = t.UnixMilli()
	}
	if t, ok := parseISO(raw.EstimatedDeliveryTime); ok {
		td.EstimatedDeliveryTime = t.Format(time.RFC3339)
		td.EstimatedDeliveryTimestamp = t.UnixMilli()
	}

	// Primary resolved date: order time, then placed time, then delivery
	// time, else now.
	date := now.Format(time.RFC3339)
	ts := now.UnixMilli()
	switch {
	case td.OrderTime != "":
		date, ts = td.OrderTime, td.OrderTimestamp
	case td.PlacedTime != "":
		date, ts = td.PlacedTime, td.PlacedTimestamp
	case td.DeliveryTime != "":
		date, ts = td.DeliveryTime, td.DeliveryTimestamp
	}

	items := make([]model.Item, 0, len(raw.OrderItems))
	for _, it := range raw.OrderItems {
		items = append(items, model.Item{Name: it.Name, Quantity: it.Quantity})
	}

	return model.Order{
		ID:         raw.OrderID,
		Date:       date,
		Timestamp:  ts,
		Restaurant: raw.RestaurantName,
		Total:      raw.OrderTotal,
		Status:     raw.OrderStatus,
		Items:      items,
		TimeData:   td,
		Source:     model.SourceAPI,
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISO(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
