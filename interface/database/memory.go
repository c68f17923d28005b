package db

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/s2-indices/common"
)

// MemoryBackend implements MetadataBackend in memory
type MemoryBackend struct {
	mu    sync.RWMutex
	tiles map[common.TileID]TileMetadata
	last  map[string]common.TileID
}

// NewMemoryBackend creates an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tiles: map[common.TileID]TileMetadata{},
		last:  map[string]common.TileID{},
	}
}

// SaveMetadata implements MetadataBackend
func (b *MemoryBackend) SaveMetadata(ctx context.Context, m TileMetadata) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tiles[m.TileID] = m
	b.last[m.Session] = m.TileID
	return nil
}

// LastMetadata implements MetadataBackend
func (b *MemoryBackend) LastMetadata(ctx context.Context, session string) (TileMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tile, ok := b.last[session]
	if !ok {
		return TileMetadata{}, ErrNotFound{Type: "session", ID: session}
	}
	m := b.tiles[tile]
	m.Session = session
	return m, nil
}

// TileMetadata implements MetadataBackend
func (b *MemoryBackend) TileMetadata(ctx context.Context, tile common.TileID) (TileMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.tiles[tile]
	if !ok {
		return TileMetadata{}, ErrNotFound{Type: "tile", ID: string(tile)}
	}
	return m, nil
}

// ListMetadata implements MetadataBackend
func (b *MemoryBackend) ListMetadata(ctx context.Context, pattern string, page, limit int) ([]TileMetadata, error) {
	match := func(string) bool { return true }
	if pattern != "" {
		if strings.HasSuffix(pattern, "(?i)") {
			pattern = strings.ToLower(strings.TrimSuffix(pattern, "(?i)"))
			match = func(s string) bool { ok, _ := path.Match(pattern, strings.ToLower(s)); return ok }
		} else {
			match = func(s string) bool { ok, _ := path.Match(pattern, s); return ok }
		}
	}

	b.mu.RLock()
	res := []TileMetadata{}
	for id, m := range b.tiles {
		if match(string(id)) {
			res = append(res, m)
		}
	}
	b.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].TileID < res[j].TileID
	})
	if limit > 0 {
		start := page * limit
		if start >= len(res) {
			return []TileMetadata{}, nil
		}
		res = res[start:min(start+limit, len(res))]
	}
	return res, nil
}
