package collector

import "context"

// Item is one external news entry as the source reports it.
type Item struct {
	ID          int64
	Type        string // story, job, ask, poll...
	Title       string
	URL         string
	By          string
	Time        int64 // unix seconds
	Score       int
	Descendants int
	Text        string
}

// Source abstracts the external provider: a ranked ID list plus per-ID
// detail. The ingestor depends only on this shape.
type Source interface {
	// TopIDs returns up to limit current top item IDs, best first.
	TopIDs(ctx context.Context, limit int) ([]int64, error)
	// Item fetches one item's detail.
	Item(ctx context.Context, id int64) (Item, error)
}
