// Package scrape runs extraction passes against a rendered page source and
// feeds candidates through the reconciliation gate.
package scrape

import (
	"context"
	"fmt"
	"log"

	"ordertrack/internal/extract"
	"ordertrack/internal/metrics"
	"ordertrack/internal/reconcile"
)

// Source supplies rendered page snapshots and accepts scroll requests so that
// cards hidden behind client-side pagination materialize.
type Source interface {
	// Scroll requests maximal scroll of the source view.
	Scroll(ctx context.Context) error
	// Snapshot returns the current rendered page markup.
	Snapshot(ctx context.Context) ([]byte, error)
}

// Scraper binds a page source to the reconciliation engine.
type Scraper struct {
	src Source
	rec *reconcile.Engine
	m   *metrics.Registry
}

func New(src Source, rec *reconcile.Engine, m *metrics.Registry) *Scraper {
	return &Scraper{src: src, rec: rec, m: m}
}

// RunPass takes one snapshot, extracts every visible candidate, and writes
// them through the gate. Passes are no-ops while a clear is in progress. A
// failed write is logged and skipped; extraction idempotence makes the next
// pass the retry.
func (s *Scraper) RunPass(ctx context.Context) (written int, err error) {
	if s.rec.Suppressed() {
		return 0, nil
	}
	raw, err := s.src.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	doc, err := extract.ParseDocument(bytesReader(raw))
	if err != nil {
		return 0, err
	}
	if s.m != nil {
		s.m.Passes.Inc()
	}
	for _, ord := range extract.Pass(doc) {
		ok, err := s.rec.SaveScraped(ord)
		if err != nil {
			log.Printf("scrape: save %s failed: %v", ord.ID, err)
			if s.m != nil {
				s.m.StoreErrors.Inc()
			}
			continue
		}
		if ok {
			written++
			if s.m != nil {
				s.m.ScrapedSaved.Inc()
			}
		} else if s.m != nil {
			s.m.ScrapedSkipped.Inc()
		}
	}
	return written, nil
}

// Scroll forwards a scroll request to the source.
func (s *Scraper) Scroll(ctx context.Context) error { return s.src.Scroll(ctx) }
