package queue

import (
	"container/heap"
	"errors"
	"sync"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue at capacity")
)

// priorityQueue implements heap.Interface for QueueItem.
type priorityQueue []*QueueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	// Lower depth first (breadth-first), then insertion order.
	if pq[i].Depth != pq[j].Depth {
		return pq[i].Depth < pq[j].Depth
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*QueueItem))
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return item
}

// MemoryQueue is an in-memory depth-ordered queue. Items of equal depth
// come out in the order they were pushed. A URL already waiting in the
// queue is not added twice.
type MemoryQueue struct {
	mu       sync.RWMutex
	pq       priorityQueue
	urlSet   map[string]struct{}
	closed   bool
	capacity int
	nextSeq  uint64
}

// NewMemoryQueue creates a new in-memory queue. A capacity of 0 is unbounded.
func NewMemoryQueue(capacity int) *MemoryQueue {
	mq := &MemoryQueue{
		pq:       make(priorityQueue, 0),
		urlSet:   make(map[string]struct{}),
		capacity: capacity,
	}
	heap.Init(&mq.pq)
	return mq
}

// Push adds an item to the queue.
func (mq *MemoryQueue) Push(item *QueueItem) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return ErrQueueClosed
	}

	if _, exists := mq.urlSet[item.URL]; exists {
		return nil
	}

	if mq.capacity > 0 && len(mq.pq) >= mq.capacity {
		return ErrQueueFull
	}

	item.seq = mq.nextSeq
	mq.nextSeq++
	mq.urlSet[item.URL] = struct{}{}
	heap.Push(&mq.pq, item)
	return nil
}

// Pop removes and returns the next item from the queue.
func (mq *MemoryQueue) Pop() (*QueueItem, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil, ErrQueueClosed
	}

	if len(mq.pq) == 0 {
		return nil, ErrQueueEmpty
	}

	item := heap.Pop(&mq.pq).(*QueueItem)
	delete(mq.urlSet, item.URL)
	return item, nil
}

// Len returns the number of items in the queue.
func (mq *MemoryQueue) Len() int {
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	return len(mq.pq)
}

// Close closes the queue. Later pushes and pops fail with ErrQueueClosed.
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	mq.closed = true
	return nil
}
