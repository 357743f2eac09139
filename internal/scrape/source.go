package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// FileSource reads the rendered page from a file that an external renderer
// keeps up to date. Scroll is a no-op; the renderer appends content on its
// own schedule.
type FileSource struct {
	Path string
}

func (f *FileSource) Scroll(ctx context.Context) error { return nil }

func (f *FileSource) Snapshot(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read page file: %w", err)
	}
	return b, nil
}

// HTTPSource talks to a remote rendering agent that serves the current page
// markup and accepts scroll commands.
type HTTPSource struct {
	Client      *http.Client
	SnapshotURL string
	ScrollURL   string
}

func (h *HTTPSource) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTPSource) Scroll(ctx context.Context) error {
	if h.ScrollURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.ScrollURL, nil)
	if err != nil {
		return fmt.Errorf("scroll request: %w", err)
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("scroll: status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPSource) Snapshot(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.SnapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot request: %w", err)
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot read: %w", err)
	}
	return b, nil
}
