// Package state holds per-run crawl state.
package state

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator is the visited set of a crawl. A Bloom filter answers most
// misses; an exact map confirms hits so false positives never skip a URL.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	order  []string
}

// NewDeduplicator creates a new deduplicator sized for estimatedItems keys.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
		order:  make([]string, 0),
	}
}

// Visit marks key as visited and reports whether it was new.
func (d *Deduplicator) Visit(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(key) {
		if _, exists := d.exact[key]; exists {
			return false
		}
	}

	d.filter.AddString(key)
	d.exact[key] = struct{}{}
	d.order = append(d.order, key)
	return true
}

// HasSeen checks if a key has been visited.
func (d *Deduplicator) HasSeen(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(key) {
		return false
	}

	_, exists := d.exact[key]
	return exists
}

// Count returns the number of distinct keys visited.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// Visited returns the visited keys in the order they were first seen.
func (d *Deduplicator) Visited() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := make([]string, len(d.order))
	copy(keys, d.order)
	return keys
}
