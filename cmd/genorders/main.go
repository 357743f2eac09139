package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"ordertrack/internal/apisync"
)

func main() {
	var (
		count      int
		batchSize  int
		outputFile string
		bootstrap  string
		topic      string
	)
	flag.IntVar(&count, "count", 100, "number of orders to generate")
	flag.IntVar(&batchSize, "batch-size", 20, "orders per payload batch")
	flag.StringVar(&outputFile, "output", "orders.payloads.jsonl", "output file (ignored when kafka is set)")
	flag.StringVar(&bootstrap, "kafka-bootstrap", "", "publish batches to kafka instead of a file")
	flag.StringVar(&topic, "topic", "orders.payloads", "kafka topic for payload batches")
	flag.Parse()

	if err := generate(count, batchSize, outputFile, bootstrap, topic); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

var restaurants = []string{
	"Biryani Blues", "Pizza Palace", "Wok This Way", "Dosa Corner", "Burger Barn",
}

var dishes = []string{
	"Chicken Biryani", "Paneer Tikka", "Garlic Naan", "Veg Hakka Noodles",
	"Masala Dosa", "Margherita Pizza", "Classic Cheeseburger", "Gulab Jamun",
}

func generate(count, batchSize int, outputFile, bootstrap, topic string) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	base := time.Now().Add(-time.Duration(count) * 6 * time.Hour)

	var publish func(p apisync.Payload) error
	if bootstrap != "" {
		w := apisync.NewPayloadWriter(bootstrap, topic)
		publish = func(p apisync.Payload) error { return w.Publish(context.Background(), p) }
	} else {
		file, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create file: %w", err)
		}
		defer file.Close()
		enc := json.NewEncoder(file)
		publish = func(p apisync.Payload) error { return enc.Encode(&p) }
	}

	batches := 0
	for start := 0; start < count; start += batchSize {
		n := batchSize
		if start+n > count {
			n = count - start
		}
		p := apisync.Payload{Orders: make([]apisync.RawOrder, 0, n)}
		for i := 0; i < n; i++ {
			ts := base.Add(time.Duration(start+i) * 6 * time.Hour)
			items := []apisync.RawItem{
				{Name: dishes[rng.Intn(len(dishes))], Quantity: 1 + rng.Intn(3)},
			}
			if rng.Intn(2) == 0 {
				items = append(items, apisync.RawItem{Name: dishes[rng.Intn(len(dishes))], Quantity: 1})
			}
			p.Orders = append(p.Orders, apisync.RawOrder{
				OrderID:         fmt.Sprintf("%d", 1000000000+rng.Int63n(9000000000)),
				OrderTime:       ts.Format(time.RFC3339),
				DeliveryTime:    ts.Add(40 * time.Minute).Format(time.RFC3339),
				OrderPlacedTime: ts.Add(-2 * time.Minute).Format(time.RFC3339),
				RestaurantName:  restaurants[rng.Intn(len(restaurants))],
				OrderTotal:      float64(150 + rng.Intn(1200)),
				OrderStatus:     "delivered",
				OrderItems:      items,
			})
		}
		if err := publish(p); err != nil {
			return fmt.Errorf("publish batch %d: %w", batches+1, err)
		}
		batches++
	}

	log.Printf("generated %d orders in %d batches", count, batches)
	return nil
}
