// Package ingest pulls current top items from the external source and
// persists the ones the store has not seen yet. Runs are all-or-nothing on
// the ID list and best-effort per item.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/mtoman/newsfeed/internal/collector"
	"github.com/mtoman/newsfeed/internal/storage"
)

// ErrSourceUnavailable means the source's ID list could not be fetched at
// all; the run aborts without touching the store.
var ErrSourceUnavailable = errors.New("source unavailable")

// Store is the slice of the item store the ingestor writes through.
type Store interface {
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	UpsertItem(ctx context.Context, item *storage.NewsItem) (bool, error)
}

const (
	fetchConcurrency = 8
	perItemTimeout   = 8 * time.Second
)

// Ingestor runs one bounded ingestion pass per invocation.
type Ingestor struct {
	source collector.Source
	store  Store
	limit  int
}

func New(source collector.Source, store Store, limit int) *Ingestor {
	if limit <= 0 {
		limit = 50
	}
	return &Ingestor{source: source, store: store, limit: limit}
}

// Run fetches the current top IDs, skips the ones already stored, fetches
// detail for the rest and upserts them. It returns how many new rows were
// created. Individual item failures are logged and skipped; the whole
// batch is retried on the next scheduled tick, never immediately.
func (ing *Ingestor) Run(ctx context.Context) (int, error) {
	ids, err := ing.source.TopIDs(ctx, ing.limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	existing, err := ing.store.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		log.Printf("ingest: all %d top items already stored", len(ids))
		return 0, nil
	}

	items := ing.fetchAll(ctx, missing)

	created := 0
	for i := range items {
		ok, err := ing.store.UpsertItem(ctx, &items[i])
		if err != nil {
			log.Printf("ingest: upsert item %d: %v", items[i].ID, err)
			continue
		}
		if ok {
			created++
		}
	}

	log.Printf("ingest: done, top=%d missing=%d created=%d", len(ids), len(missing), created)
	return created, nil
}

// fetchAll resolves IDs to normalized items with bounded concurrency and a
// per-item timeout, so one slow upstream call cannot stall the run.
func (ing *Ingestor) fetchAll(ctx context.Context, ids []int64) []storage.NewsItem {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, fetchConcurrency)
		items = make([]storage.NewsItem, 0, len(ids))
		seen  = make(map[int64]struct{}, len(ids))
	)

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			ictx, cancel := context.WithTimeout(ctx, perItemTimeout)
			defer cancel()

			raw, err := ing.source.Item(ictx, id)
			if err != nil {
				log.Printf("ingest: fetch item %d: %v", id, err)
				return
			}
			item, ok := normalize(raw)
			if !ok {
				return
			}

			mu.Lock()
			if _, dup := seen[item.ID]; !dup {
				seen[item.ID] = struct{}{}
				items = append(items, item)
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return items
}

// normalize converts a raw source item into a storable NewsItem, dropping
// entries without a usable title or of a non-story type.
func normalize(raw collector.Item) (storage.NewsItem, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return storage.NewsItem{}, false
	}
	if raw.Type != "" && raw.Type != "story" {
		return storage.NewsItem{}, false
	}

	url := strings.TrimSpace(raw.URL)
	if url == "" {
		url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", raw.ID)
	}

	return storage.NewsItem{
		ID:        raw.ID,
		Title:     title,
		URL:       url,
		Author:    raw.By,
		CreatedAt: time.Unix(raw.Time, 0),
		Extra: datatypes.JSONMap{
			"score":       raw.Score,
			"descendants": raw.Descendants,
			"text":        raw.Text,
		},
	}, true
}
