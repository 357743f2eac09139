package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ordertrack/internal/reconcile"
	"ordertrack/internal/store"
)

const fixturePage = `<html><body>
<div class="card">
  <img src="r1.png"/>
  <div>
    <div>Biryani Blues</div>
    <div>ORDER #1234567890</div>
    <div>Delivered on Mon, Aug 25, 2025</div>
  </div>
  <button>VIEW DETAILS</button>
  <p>Chicken Biryani</p>
  <div>Total Paid: 540</div>
  <button>REORDER</button>
</div>
<div class="card">
  <img src="r2.png"/>
  <div>
    <div>Dosa Corner</div>
    <div>ORDER #9876543210</div>
    <div>Delivered on Tue, Aug 26, 2025</div>
  </div>
  <button>VIEW DETAILS</button>
</div>
</body></html>`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(fixturePage), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestRunPass_WritesCandidates(t *testing.T) {
	rec := reconcile.New(store.NewMemoryStore())
	s := New(&FileSource{Path: writeFixture(t)}, rec, nil)

	written, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if written != 2 {
		t.Fatalf("want 2 written, got %d", written)
	}

	orders, err := rec.Orders()
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("want 2 records, got %+v", orders)
	}
	// Most recent first.
	if orders[0].ID != "9876543210" || orders[1].Restaurant != "Biryani Blues" {
		t.Fatalf("bad records: %+v", orders)
	}
	if orders[1].Total != 540 {
		t.Fatalf("bad total: %+v", orders[1])
	}
}

func TestRunPass_Idempotent(t *testing.T) {
	rec := reconcile.New(store.NewMemoryStore())
	s := New(&FileSource{Path: writeFixture(t)}, rec, nil)

	for i := 0; i < 3; i++ {
		if _, err := s.RunPass(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if n, _ := rec.Count(); n != 2 {
		t.Fatalf("repeated passes must not duplicate: %d", n)
	}
}

func TestRunPass_SuppressedAfterClear(t *testing.T) {
	rec := reconcile.New(store.NewMemoryStore())
	rec.ClearGrace = time.Minute
	s := New(&FileSource{Path: writeFixture(t)}, rec, nil)

	if _, err := s.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if err := rec.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	written, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("suppressed pass: %v", err)
	}
	if written != 0 {
		t.Fatalf("suppressed pass must write nothing, got %d", written)
	}
	if n, _ := rec.Count(); n != 0 {
		t.Fatalf("cleared records resurrected: %d", n)
	}
}

func TestHTTPSource(t *testing.T) {
	scrolls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/page":
			_, _ = w.Write([]byte(fixturePage))
		case r.Method == http.MethodPost && r.URL.Path == "/scroll":
			scrolls++
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := &HTTPSource{SnapshotURL: srv.URL + "/page", ScrollURL: srv.URL + "/scroll"}
	if err := src.Scroll(context.Background()); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if scrolls != 1 {
		t.Fatalf("scroll not delivered")
	}

	rec := reconcile.New(store.NewMemoryStore())
	s := New(src, rec, nil)
	written, err := s.RunPass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if written != 2 {
		t.Fatalf("want 2 written, got %d", written)
	}
}

func TestHTTPSource_SnapshotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent restarting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := &HTTPSource{SnapshotURL: srv.URL}
	if _, err := src.Snapshot(context.Background()); err == nil {
		t.Fatalf("want error on 503")
	}
}
