package embed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// DefaultCacheSize bounds the number of vectors a Cached embedder keeps.
const DefaultCacheSize = 4096

// Cached memoizes vectors of another embedder. Entries are evicted oldest first.
type Cached struct {
	inner Embedder
	max   int

	mu      sync.RWMutex
	entries map[string][]float32
	order   []string
}

func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cached{
		inner:   inner,
		max:     size,
		entries: make(map[string][]float32, size),
	}
}

func (c *Cached) ModelID() string { return c.inner.ModelID() }

func (c *Cached) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []int
	c.mu.RLock()
	for i, text := range texts {
		keys[i] = c.key(text, kind)
		if v, ok := c.entries[keys[i]]; ok {
			out[i] = cloneVector(v)
			continue
		}
		missing = append(missing, i)
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}

	vectors, err := c.inner.Embed(ctx, pending, kind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for j, i := range missing {
		out[i] = vectors[j]
		c.store(keys[i], vectors[j])
	}

	return out, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cached) store(key string, v []float32) {
	if _, ok := c.entries[key]; ok {
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = cloneVector(v)
	c.order = append(c.order, key)
}

func (c *Cached) key(text string, kind Kind) string {
	sum := sha1.Sum([]byte(c.inner.ModelID() + "|" + string(kind) + "|" + text))
	return hex.EncodeToString(sum[:])
}
