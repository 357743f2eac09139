// Package reconcile is the single write gate between the two ingestion
// channels and the store. It owns source-priority deduplication, the bulk
// clear operation, and the suppression window that keeps an in-flight
// extraction pass from resurrecting freshly cleared records.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ordertrack/internal/model"
	"ordertrack/internal/store"
)

// OrderKeyPrefix addresses order records in the store.
const OrderKeyPrefix = "order_"

// StatsKey is the fixed key of the cached aggregate snapshot. It is cleared
// together with the order records.
const StatsKey = "stats"

// Now is the clock used for savedAt bookkeeping. Split for testability.
var Now = func() time.Time { return time.Now() }

// DefaultClearGrace is how long extraction passes stay suppressed after a
// bulk clear.
const DefaultClearGrace = time.Second

// Engine serializes all store mutations. Writes replace whole records
// atomically; there is no field-level merge.
type Engine struct {
	mu         sync.Mutex
	store      store.Store
	clearing   atomic.Bool
	ClearGrace time.Duration
}

func New(st store.Store) *Engine {
	return &Engine{store: st, ClearGrace: DefaultClearGrace}
}

// SaveScraped writes a scraped candidate unless a record for the same id is
// already held with api source. Returns whether the record was written.
func (e *Engine) SaveScraped(o model.Order) (bool, error) {
	if o.ID == "" {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok, err := e.load(o.ID)
	if err != nil {
		return false, err
	}
	if ok && !model.SourceScraped.Overrides(existing.Source) {
		return false, nil
	}
	o.Source = model.SourceScraped
	if err := e.put(o); err != nil {
		return false, err
	}
	return true, nil
}

// SaveAPI writes an api record unconditionally, overwriting any prior record
// for the id. Repeated identical payloads are idempotent.
func (e *Engine) SaveAPI(o model.Order) error {
	if o.ID == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o.Source = model.SourceAPI
	return e.put(o)
}

// Orders returns every stored record, most recent first.
func (e *Engine) Orders() ([]model.Order, error) {
	keys, err := e.store.ListKeys(OrderKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]model.Order, 0, len(keys))
	for _, k := range keys {
		v, ok, err := e.store.Get(k)
		if err != nil || !ok {
			if err != nil {
				log.Printf("reconcile: read %s failed: %v", k, err)
			}
			continue
		}
		var o model.Order
		if err := json.Unmarshal(v, &o); err != nil {
			log.Printf("reconcile: decode %s failed: %v", k, err)
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// Count returns the number of stored order records.
func (e *Engine) Count() (int, error) {
	keys, err := e.store.ListKeys(OrderKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return len(keys), nil
}

// Clear deletes every order record and the cached aggregate snapshot, then
// suppresses extraction passes for the grace period.
func (e *Engine) Clear() error {
	e.clearing.Store(true)
	grace := e.ClearGrace
	if grace <= 0 {
		grace = DefaultClearGrace
	}
	defer time.AfterFunc(grace, func() { e.clearing.Store(false) })

	e.mu.Lock()
	defer e.mu.Unlock()
	keys, err := e.store.ListKeys(OrderKeyPrefix)
	if err != nil {
		return fmt.Errorf("clear: list: %w", err)
	}
	for _, k := range keys {
		if err := e.store.Delete(k); err != nil {
			return fmt.Errorf("clear: delete %s: %w", k, err)
		}
	}
	if err := e.store.Delete(StatsKey); err != nil {
		return fmt.Errorf("clear: delete snapshot: %w", err)
	}
	return nil
}

// Suppressed reports whether extraction passes should be no-ops because a
// clear is in progress or just finished.
func (e *Engine) Suppressed() bool { return e.clearing.Load() }

// Store exposes the underlying KV store for collaborators that cache
// non-authoritative values (the aggregate snapshot).
func (e *Engine) Store() store.Store { return e.store }

func (e *Engine) load(id string) (model.Order, bool, error) {
	v, ok, err := e.store.Get(OrderKeyPrefix + id)
	if err != nil {
		return model.Order{}, false, fmt.Errorf("get order %s: %w", id, err)
	}
	if !ok {
		return model.Order{}, false, nil
	}
	var o model.Order
	if err := json.Unmarshal(v, &o); err != nil {
		return model.Order{}, false, fmt.Errorf("decode order %s: %w", id, err)
	}
	return o, true, nil
}

func (e *Engine) put(o model.Order) error {
	o.SavedAt = Now().Format(time.RFC3339)
	b, err := json.Marshal(&o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	if err := e.store.Set(OrderKeyPrefix+o.ID, b); err != nil {
		return fmt.Errorf("set order %s: %w", o.ID, err)
	}
	return nil
}
