package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Get(key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble get: %w", err)
	}
	out := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, false, fmt.Errorf("pebble close value: %w", err)
	}
	return out, true, nil
}

func (p *PebbleStore) Set(key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) Delete(key string) error {
	if err := p.db.Delete([]byte(key), pebble.NoSync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

func (p *PebbleStore) ListKeys(prefix string) ([]string, error) {
	it, err := p.db.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	var keys []string
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	return keys, nil
}

// prefixIterOptions bounds iteration to keys starting with prefix. An empty
// prefix scans everything.
func prefixIterOptions(prefix string) *pebble.IterOptions {
	if prefix == "" {
		return nil
	}
	lower := []byte(prefix)
	upper := append([]byte(nil), lower...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			upper = upper[:i+1]
			return &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
		}
	}
	return &pebble.IterOptions{LowerBound: lower}
}
