// Package backup dumps the current record set to the filesystem as a
// self-describing JSON snapshot.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ordertrack/internal/model"
)

type Dumper interface {
	Dump(dumpID string, orders []model.Order) (string, error)
}

type FilesystemDumper struct {
	baseDir string
}

func NewFilesystemDumper(baseDir string) *FilesystemDumper {
	return &FilesystemDumper{baseDir: baseDir}
}

// Dump writes orders.json under a per-dump directory and returns its path.
func (f *FilesystemDumper) Dump(dumpID string, orders []model.Order) (string, error) {
	dir := filepath.Join(f.baseDir, dumpID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	file := filepath.Join(dir, "orders.json")
	out, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(orders); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return file, nil
}
