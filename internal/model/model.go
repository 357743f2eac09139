package model

import "time"

// Source identifies the ingestion channel a record came from. The channels
// form a priority lattice: unset < scraped < api.
type Source string

const (
	SourceUnset   Source = ""
	SourceScraped Source = "scraped"
	SourceAPI     Source = "api"
)

func (s Source) rank() int {
	switch s {
	case SourceScraped:
		return 1
	case SourceAPI:
		return 2
	default:
		return 0
	}
}

// Overrides reports whether a write from s may replace a record stored with
// source existing. Equal sources overwrite; a lower source never replaces a
// higher one.
func (s Source) Overrides(existing Source) bool {
	return s.rank() >= existing.rank()
}

// Item is one line of an order. Quantity is optional; the text-scraped
// fallback produces a single free-text item with no quantity.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
}

// TimeData carries the named timestamps an order may expose, each
// independently optional, stored as both an ISO string and epoch millis.
type TimeData struct {
	OrderTime                  string `json:"orderTime,omitempty"`
	OrderTimestamp             int64  `json:"orderTimestamp,omitempty"`
	PlacedTime                 string `json:"placedTime,omitempty"`
	PlacedTimestamp            int64  `json:"placedTimestamp,omitempty"`
	DeliveryTime               string `json:"deliveryTime,omitempty"`
	DeliveryTimestamp          int64  `json:"deliveryTimestamp,omitempty"`
	EstimatedDeliveryTime      string `json:"estimatedDeliveryTime,omitempty"`
	EstimatedDeliveryTimestamp int64  `json:"estimatedDeliveryTimestamp,omitempty"`
}

// UnknownRestaurant is the sentinel used when no name could be extracted.
const UnknownRestaurant = "Unknown Restaurant"

// Order is the canonical stored representation of one delivery transaction.
type Order struct {
	ID         string   `json:"id"`
	Date       string   `json:"date"`
	Timestamp  int64    `json:"timestamp"`
	Restaurant string   `json:"restaurant"`
	Total      float64  `json:"total"`
	Status     string   `json:"status"`
	Items      []Item   `json:"items"`
	TimeData   TimeData `json:"timeData"`
	SavedAt    string   `json:"savedAt,omitempty"`
	Source     Source   `json:"source"`
}

// ResolvedTime returns the best-available timestamp for bucketing, in
// priority order: orderTime, placedTime, the record date, the raw epoch
// timestamp, then fallback. The result is in the local timezone.
func (o Order) ResolvedTime(fallback time.Time) time.Time {
	for _, iso := range []string{o.TimeData.OrderTime, o.TimeData.PlacedTime, o.Date} {
		if iso == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, iso); err == nil {
			return t.Local()
		}
	}
	if o.Timestamp > 0 {
		return time.UnixMilli(o.Timestamp).Local()
	}
	return fallback
}
