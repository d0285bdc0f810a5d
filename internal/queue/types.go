package queue

// QueueItem is a URL waiting to be fetched at a given link depth.
type QueueItem struct {
	URL       string
	Depth     int
	ParentURL string

	seq uint64
}
