// Package queue provides the crawl frontier.
package queue

// Queue defines the interface for URL queues.
type Queue interface {
	// Push adds an item to the queue
	Push(item *QueueItem) error

	// Pop removes and returns the next item from the queue
	Pop() (*QueueItem, error)

	// Len returns the number of items in the queue
	Len() int

	// Close drops pending items; later pushes fail
	Close() error
}
