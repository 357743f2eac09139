package stats

import (
	"encoding/json"
	"fmt"
	"log"

	"ordertrack/internal/reconcile"
)

// Engine materializes the record set and computes a fresh report on every
// request, caching the result best-effort under the fixed snapshot key.
type Engine struct {
	rec *reconcile.Engine
}

func NewEngine(rec *reconcile.Engine) *Engine {
	return &Engine{rec: rec}
}

// Report computes a fresh aggregate snapshot. The cache write is best-effort:
// a failed write is logged and the fresh report still returned.
func (e *Engine) Report() (Report, error) {
	orders, err := e.rec.Orders()
	if err != nil {
		return Report{}, fmt.Errorf("materialize orders: %w", err)
	}
	rep := Compute(orders)
	if b, err := json.Marshal(&rep); err == nil {
		if err := e.rec.Store().Set(reconcile.StatsKey, b); err != nil {
			log.Printf("stats: snapshot cache write failed: %v", err)
		}
	}
	return rep, nil
}

// Cached returns the last cached snapshot, if any. Staleness is acceptable;
// callers wanting truth use Report.
func (e *Engine) Cached() (Report, bool) {
	v, ok, err := e.rec.Store().Get(reconcile.StatsKey)
	if err != nil || !ok {
		if err != nil {
			log.Printf("stats: snapshot cache read failed: %v", err)
		}
		return Report{}, false
	}
	var rep Report
	if err := json.Unmarshal(v, &rep); err != nil {
		return Report{}, false
	}
	return rep, true
}
