package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ordertrack/internal/model"
)

func TestFilesystemDumper_Dump(t *testing.T) {
	base := t.TempDir()
	d := NewFilesystemDumper(base)

	orders := []model.Order{
		{ID: "1", Restaurant: "Biryani Blues", Total: 540},
		{ID: "2", Restaurant: "Dosa Corner", Total: 120},
	}
	path, err := d.Dump("dump-1", orders)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if want := filepath.Join(base, "dump-1", "orders.json"); path != want {
		t.Fatalf("bad path: %s want %s", path, want)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	var got []model.Order
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal dump: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].Restaurant != "Dosa Corner" {
		t.Fatalf("bad round trip: %+v", got)
	}
}

func TestFilesystemDumper_EmptySet(t *testing.T) {
	d := NewFilesystemDumper(t.TempDir())
	path, err := d.Dump("dump-empty", nil)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	var got []model.Order
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal dump: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty set, got %+v", got)
	}
}
