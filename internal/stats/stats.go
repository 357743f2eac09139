// Package stats computes aggregate analytics over the full current record
// set. Every computation materializes fresh from the store; the cached
// snapshot is a display hint only and never authoritative.
package stats

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"ordertrack/internal/model"
)

// Now anchors the monthly window and supplies the fallback bucketing time.
// Split for testability.
var Now = func() time.Time { return time.Now() }

// MonthWindow is the number of trailing calendar months in the histogram.
const MonthWindow = 12

type Summary struct {
	TotalOrders       int   `json:"totalOrders"`
	TotalSpent        int64 `json:"totalSpent"`
	AverageOrderValue int64 `json:"averageOrderValue"`
	MedianOrderValue  int64 `json:"medianOrderValue"`
	HighestOrderValue int64 `json:"highestOrderValue"`
	LowestOrderValue  int64 `json:"lowestOrderValue"`
	OrdersThisMonth   int   `json:"ordersThisMonth"`
	OrdersThisYear    int   `json:"ordersThisYear"`
}

// MonthBucket is one month of the trailing window, keyed "YYYY-MM".
type MonthBucket struct {
	Key    string  `json:"key"`
	Orders int     `json:"orders"`
	Spend  float64 `json:"spend"`
}

type WeekdayBucket struct {
	Day    string `json:"day"`
	Orders int    `json:"orders"`
}

type DaypartBucket struct {
	Label  string `json:"label"`
	Orders int    `json:"orders"`
}

type RestaurantRank struct {
	Name  string `json:"name"`
	Spend int64  `json:"spend"`
	Count int    `json:"count"`
}

type ItemRank struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Outlier is one of the highest-value records, trimmed for display.
type Outlier struct {
	ID         string `json:"id"`
	Restaurant string `json:"restaurant"`
	Total      int64  `json:"total"`
	Date       string `json:"date"`
}

// Report is the full aggregate snapshot consumed by analytics displays.
type Report struct {
	SampleCount    int              `json:"sampleCount"`
	Stats          Summary          `json:"stats"`
	Monthly        []MonthBucket    `json:"monthly"`
	Weekday        []WeekdayBucket  `json:"weekday"`
	Dayparts       []DaypartBucket  `json:"dayparts"`
	TopRestaurants []RestaurantRank `json:"topRestaurants"`
	TopItems       []ItemRank       `json:"topItems"`
	Outliers       []Outlier        `json:"outliers"`
	GeneratedAt    string           `json:"generatedAt"`
}

var weekdayLabels = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var daypartLabels = []string{"6-9 AM", "9-12 PM", "12-3 PM", "3-6 PM", "6-9 PM", "9-12 AM"}

// Compute builds the full report for a fixed record set. It is deterministic:
// equal inputs yield equal outputs, and ranking ties keep input-encounter
// order. Accumulation is unrounded; only final values round to integers.
func Compute(orders []model.Order) Report {
	now := Now()

	totals := make([]float64, 0, len(orders))
	var totalSpent float64
	for _, o := range orders {
		totals = append(totals, o.Total)
		totalSpent += o.Total
	}

	sum := Summary{TotalOrders: len(orders), TotalSpent: quantize(totalSpent)}
	if len(totals) > 0 {
		sorted := append([]float64(nil), totals...)
		sort.Float64s(sorted)
		sum.AverageOrderValue = quantize(totalSpent / float64(len(totals)))
		sum.MedianOrderValue = quantize(median(sorted))
		sum.HighestOrderValue = quantize(sorted[len(sorted)-1])
		sum.LowestOrderValue = quantize(sorted[0])
	}

	monthly := make([]MonthBucket, MonthWindow)
	monthIndex := make(map[string]int, MonthWindow)
	for i := 0; i < MonthWindow; i++ {
		m := time.Date(now.Year(), now.Month()-time.Month(MonthWindow-1-i), 1, 0, 0, 0, 0, now.Location())
		key := m.Format("2006-01")
		monthly[i] = MonthBucket{Key: key}
		monthIndex[key] = i
	}

	weekday := make([]WeekdayBucket, len(weekdayLabels))
	for i, d := range weekdayLabels {
		weekday[i] = WeekdayBucket{Day: d}
	}
	dayparts := make([]DaypartBucket, len(daypartLabels))
	for i, l := range daypartLabels {
		dayparts[i] = DaypartBucket{Label: l}
	}

	restSpend := make(map[string]float64)
	restCount := make(map[string]int)
	var restOrder []string
	itemCount := make(map[string]int)
	var itemOrder []string

	for _, o := range orders {
		dt := o.ResolvedTime(now)

		if idx, ok := monthIndex[dt.Format("2006-01")]; ok {
			monthly[idx].Orders++
			monthly[idx].Spend += o.Total
		}
		weekday[(int(dt.Weekday())+6)%7].Orders++
		dayparts[daypartIndex(dt.Hour())].Orders++

		// This-month/this-year counters follow the record date, not the
		// resolved clock-level time.
		rt := recordTime(o, now)
		if rt.Year() == now.Year() {
			sum.OrdersThisYear++
			if rt.Month() == now.Month() {
				sum.OrdersThisMonth++
			}
		}

		name := o.Restaurant
		if name == "" {
			name = "Unknown"
		}
		if _, seen := restSpend[name]; !seen {
			restOrder = append(restOrder, name)
		}
		restSpend[name] += o.Total
		restCount[name]++

		for _, n := range itemNames(o.Items) {
			norm := NormalizeItemName(n)
			if norm == "" {
				continue
			}
			if _, seen := itemCount[norm]; !seen {
				itemOrder = append(itemOrder, norm)
			}
			itemCount[norm]++
		}
	}

	topRestaurants := make([]RestaurantRank, 0, len(restOrder))
	for _, name := range restOrder {
		topRestaurants = append(topRestaurants, RestaurantRank{
			Name:  name,
			Spend: quantize(restSpend[name]),
			Count: restCount[name],
		})
	}
	sort.SliceStable(topRestaurants, func(i, j int) bool {
		return restSpend[topRestaurants[i].Name] > restSpend[topRestaurants[j].Name]
	})
	if len(topRestaurants) > 10 {
		topRestaurants = topRestaurants[:10]
	}

	topItems := make([]ItemRank, 0, len(itemOrder))
	for _, name := range itemOrder {
		topItems = append(topItems, ItemRank{Name: name, Count: itemCount[name]})
	}
	sort.SliceStable(topItems, func(i, j int) bool { return topItems[i].Count > topItems[j].Count })
	if len(topItems) > 15 {
		topItems = topItems[:15]
	}

	// Ties among equal totals keep the incoming recency order.
	byTotal := append([]model.Order(nil), orders...)
	sort.SliceStable(byTotal, func(i, j int) bool { return byTotal[i].Total > byTotal[j].Total })
	if len(byTotal) > 3 {
		byTotal = byTotal[:3]
	}
	outliers := make([]Outlier, 0, len(byTotal))
	for _, o := range byTotal {
		outliers = append(outliers, Outlier{ID: o.ID, Restaurant: o.Restaurant, Total: quantize(o.Total), Date: o.Date})
	}

	return Report{
		SampleCount:    len(orders),
		Stats:          sum,
		Monthly:        monthly,
		Weekday:        weekday,
		Dayparts:       dayparts,
		TopRestaurants: topRestaurants,
		TopItems:       topItems,
		Outliers:       outliers,
		GeneratedAt:    now.Format(time.RFC3339),
	}
}

// recordTime parses the record's primary date, falling back to the raw epoch
// timestamp, then to fallback.
func recordTime(o model.Order, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, o.Date); err == nil {
		return t.Local()
	}
	if o.Timestamp > 0 {
		return time.UnixMilli(o.Timestamp).Local()
	}
	return fallback
}

// daypartIndex maps an hour to its fixed clock-hour bucket; everything from
// 21:00 through 05:59 lands in the final bucket.
func daypartIndex(hour int) int {
	switch {
	case hour >= 6 && hour < 9:
		return 0
	case hour >= 9 && hour < 12:
		return 1
	case hour >= 12 && hour < 15:
		return 2
	case hour >= 15 && hour < 18:
		return 3
	case hour >= 18 && hour < 21:
		return 4
	default:
		return 5
	}
}

// itemNames flattens an order's item list into name strings. A single entry
// carrying a semicolon-separated blob (the text-only fallback) is split into
// its component dishes first.
func itemNames(items []model.Item) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	if len(names) == 1 && strings.Contains(names[0], ";") {
		parts := strings.Split(names[0], ";")
		names = names[:0]
		for _, p := range parts {
			names = append(names, strings.TrimSpace(p))
		}
	}
	return names
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRunRe      = regexp.MustCompile(`\s+`)
)

// NormalizeItemName canonicalizes an item name for counting: lowercase, no
// parentheticals, alphanumerics and single spaces only.
func NormalizeItemName(name string) string {
	s := strings.ToLower(name)
	s = parentheticalRe.ReplaceAllString(s, "")
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func quantize(v float64) int64 { return int64(math.Round(v)) }
