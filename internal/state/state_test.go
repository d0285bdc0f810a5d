package state

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

// =============================================================================
// Deduplicator Tests
// =============================================================================

func TestDeduplicator_New(t *testing.T) {
	tests := []struct {
		name          string
		estimatedURLs int
	}{
		{"small", 100},
		{"medium", 10000},
		{"large", 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeduplicator(tt.estimatedURLs)
			if d == nil {
				t.Fatal("NewDeduplicator returned nil")
			}
			if d.Count() != 0 {
				t.Errorf("New deduplicator count = %v, want 0", d.Count())
			}
		})
	}
}

func TestDeduplicator_Visit(t *testing.T) {
	d := NewDeduplicator(1000)

	url := "https://example.com/test"

	if d.HasSeen(url) {
		t.Error("URL should not be seen before visiting")
	}

	if !d.Visit(url) {
		t.Error("first Visit should report a new URL")
	}

	if !d.HasSeen(url) {
		t.Error("URL should be seen after visiting")
	}

	if d.Visit(url) {
		t.Error("second Visit should report a duplicate")
	}

	if d.Count() != 1 {
		t.Errorf("Count = %v, want 1", d.Count())
	}
}

func TestDeduplicator_VisitedOrder(t *testing.T) {
	d := NewDeduplicator(1000)

	urls := []string{
		"https://example.com/c",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/a",
	}
	for _, u := range urls {
		d.Visit(u)
	}

	want := []string{
		"https://example.com/c",
		"https://example.com/a",
		"https://example.com/b",
	}
	if got := d.Visited(); !reflect.DeepEqual(got, want) {
		t.Errorf("Visited() = %v, want %v", got, want)
	}
}

func TestDeduplicator_VisitedIsCopy(t *testing.T) {
	d := NewDeduplicator(1000)
	d.Visit("https://example.com/a")

	got := d.Visited()
	got[0] = "mutated"

	if d.Visited()[0] != "https://example.com/a" {
		t.Error("Visited() should return a copy")
	}
}

func TestDeduplicator_ManyURLs(t *testing.T) {
	d := NewDeduplicator(100)

	for i := 0; i < 5000; i++ {
		if !d.Visit(fmt.Sprintf("https://example.com/page/%d", i)) {
			t.Fatalf("URL %d reported as duplicate", i)
		}
	}

	if d.Count() != 5000 {
		t.Errorf("Count = %d, want 5000", d.Count())
	}
}

func TestDeduplicator_Concurrent(t *testing.T) {
	d := NewDeduplicator(10000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	newCount := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if d.Visit(fmt.Sprintf("https://example.com/%d", j)) {
					mu.Lock()
					newCount++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if newCount != 100 {
		t.Errorf("new visits = %d, want 100", newCount)
	}
	if d.Count() != 100 {
		t.Errorf("Count = %d, want 100", d.Count())
	}
}
