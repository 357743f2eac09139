// Package extract implements the heuristic text extractor that turns one
// rendered order card into a candidate record. It is a pure function of the
// parsed document and the injected clock; all fragile pattern matching lives
// here so it can be unit-tested against fixture markup alone.
package extract

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"ordertrack/internal/model"
)

// Now returns the time used for default dates and savedAt-style bookkeeping.
// Split for testability.
var Now = func() time.Time { return time.Now() }

// maxAncestorHops bounds the walk from an action trigger up to its card.
const maxAncestorHops = 8

var (
	actionRe      = regexp.MustCompile(`(?i)VIEW DETAILS|REORDER`)
	orderIDRe     = regexp.MustCompile(`(?i)ORDER #(\d{10,})`)
	boilerplateRe = regexp.MustCompile(`(?i)ORDER #|Delivered on|Total Paid|REORDER|HELP|VIEW DETAILS`)
	deliveredRe   = regexp.MustCompile(`(?is)Delivered on (.*?\d{4})`)
	clockRe       = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(?:AM|PM)?`)
	orderTimeRe   = regexp.MustCompile(`(?i)(?:Ordered|Placed)\s+(?:at\s+)?(\d{1,2}:\d{2}\s*(?:AM|PM)?)`)
	clockPartsRe  = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)?`)
	totalRe       = regexp.MustCompile(`(?i)Total Paid[:\s]+[₹$]?\s*([\d,]+(?:\.\d+)?)`)
	splitRe       = regexp.MustCompile(`(?i)REORDER|HELP|VIEW DETAILS`)
)

// ParseDocument parses a rendered page snapshot.
func ParseDocument(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Pass isolates every order card in doc and extracts a candidate record from
// each. Cards are located by finding action triggers ("VIEW DETAILS",
// "REORDER") and walking up to the nearest ancestor that also holds an image;
// containers already handled in this pass are skipped so nested triggers do
// not produce duplicates. Candidates are deduplicated by id within the pass.
func Pass(doc *html.Node) []model.Order {
	now := Now()
	processed := make(map[*html.Node]bool)
	seen := make(map[string]bool)
	var out []model.Order
	for _, trigger := range actionNodes(doc) {
		c := trigger.Parent
		for i := 0; i < maxAncestorHops && c != nil; i++ {
			if hasImage(c) {
				if processed[c] {
					break
				}
				if ord, ok := FromCard(c, now); ok {
					if !seen[ord.ID] {
						out = append(out, ord)
						seen[ord.ID] = true
					}
					processed[c] = true
					break
				}
			}
			c = c.Parent
		}
	}
	return out
}

// FromCard extracts a candidate record from one isolated card. A missing
// order identifier yields no candidate, not an error. Unparseable dates and
// totals degrade to now and zero.
func FromCard(card *html.Node, now time.Time) (model.Order, bool) {
	text := nodeText(card)

	m := orderIDRe.FindStringSubmatch(text)
	if m == nil {
		return model.Order{}, false
	}
	id := m[1]

	restaurant := model.UnknownRestaurant
	for _, leaf := range leafNodes(card) {
		name := strings.TrimSpace(nodeText(leaf))
		if name == "" || boilerplateRe.MatchString(name) {
			continue
		}
		if n := utf8.RuneCountInString(name); n > 2 && n < 50 {
			restaurant = name
			break
		}
	}

	date := now
	var td model.TimeData

	if dm := deliveredRe.FindStringSubmatch(text); dm != nil {
		dateText := strings.TrimSpace(strings.ReplaceAll(dm[1], "|", ""))
		if clock := clockRe.FindString(dateText); clock != "" {
			// Recombine a date and clock token that the layout split apart.
			joined := strings.TrimSpace(strings.Replace(dateText, clock, "", 1)) + " " + clock
			if parsed, ok := parseLooseDate(joined); ok {
				date = parsed
				td.DeliveryTime = parsed.Format(time.RFC3339)
				td.DeliveryTimestamp = parsed.UnixMilli()
			}
		} else if parsed, ok := parseLooseDate(dateText); ok {
			date = parsed
		}
	}

	if om := orderTimeRe.FindStringSubmatch(text); om != nil {
		if parts := clockPartsRe.FindStringSubmatch(om[1]); parts != nil {
			hours, _ := strconv.Atoi(parts[1])
			minutes, _ := strconv.Atoi(parts[2])
			switch strings.ToLower(parts[3]) {
			case "pm":
				if hours != 12 {
					hours += 12
				}
			case "am":
				if hours == 12 {
					hours = 0
				}
			}
			// The resolved date is reused as the base even when the order was
			// placed on a different calendar day than the delivery.
			base := time.Date(date.Year(), date.Month(), date.Day(), hours, minutes, 0, 0, date.Location())
			td.OrderTime = base.Format(time.RFC3339)
			td.OrderTimestamp = base.UnixMilli()
		}
	}

	var total float64
	if tm := totalRe.FindStringSubmatch(text); tm != nil {
		total, _ = strconv.ParseFloat(strings.ReplaceAll(tm[1], ",", ""), 64)
	}

	var items []model.Item
	if parts := splitRe.Split(text, -1); len(parts) > 1 {
		if after := parts[1]; strings.Contains(after, "Total Paid") {
			blob := strings.TrimSpace(strings.SplitN(after, "Total Paid", 2)[0])
			if blob != "" {
				items = append(items, model.Item{Name: blob})
			}
		}
	}

	return model.Order{
		ID:         id,
		Date:       date.Format(time.RFC3339),
		Timestamp:  date.UnixMilli(),
		Restaurant: restaurant,
		Total:      total,
		Status:     "delivered",
		Items:      items,
		TimeData:   td,
		Source:     model.SourceScraped,
	}, true
}

var dateLayouts = []string{
	"Mon, Jan 2, 2006 3:04 PM",
	"Mon, Jan 2, 2006 15:04",
	"Mon, Jan 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Mon, 2 Jan 2006 3:04 PM",
	"Mon, 2 Jan 2006",
	"2 Jan 2006 3:04 PM",
	"2 Jan 2006",
	"2 January 2006",
}

var ampmGlueRe = regexp.MustCompile(`(?i)(\d)(AM|PM)\b`)

// parseLooseDate parses the loosely formatted date text rendered in cards.
// Whitespace is collapsed and AM/PM markers normalized before trying a fixed
// set of layouts in the local timezone.
func parseLooseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, " ,")
	s = ampmGlueRe.ReplaceAllString(s, "$1 $2")
	s = strings.NewReplacer("am", "AM", "pm", "PM", "Am", "AM", "Pm", "PM").Replace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// actionNodes returns, in document order, the clickable elements whose text
// contains an action trigger phrase.
func actionNodes(doc *html.Node) []*html.Node {
	var out []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data != "button" && n.Data != "a" && attr(n, "role") != "button" {
			return
		}
		if actionRe.MatchString(nodeText(n)) {
			out = append(out, n)
		}
	})
	return out
}

// leafNodes returns the div/p elements with no child elements, in document
// order. These are the candidates for the restaurant display name.
func leafNodes(root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || (n.Data != "div" && n.Data != "p") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return
			}
		}
		out = append(out, n)
	})
	return out
}

func hasImage(n *html.Node) bool {
	found := false
	walk(n, func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "img" {
			found = true
		}
	})
	return found
}

// nodeText concatenates the text nodes under n, mirroring DOM textContent.
func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
