// Package feed turns the item store's ordered rows into pages a web layer
// can render: it owns order selection, page math and input validation.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtoman/newsfeed/internal/storage"
)

// ErrInvalidArgument means the caller passed unusable pagination
// parameters (non-positive page or size, unknown order).
var ErrInvalidArgument = errors.New("invalid argument")

// Store is the slice of the item store the engine reads from.
type Store interface {
	GetPage(ctx context.Context, page, size int, order storage.Order) ([]storage.NewsItem, int64, error)
	ListLatest(ctx context.Context, n int) ([]storage.NewsItem, error)
}

// Page is the structured feed slice handed to the web layer.
type Page struct {
	Items       []storage.NewsItem `json:"items"`
	CurrentPage int                `json:"current_page"`
	TotalPages  int                `json:"total_pages"`
	Total       int64              `json:"total"`
}

// Service computes deterministic orderings over the store and slices them
// into fixed-size pages.
type Service struct {
	store    Store
	pageSize int
}

func New(store Store, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{store: store, pageSize: pageSize}
}

// ParseOrder maps a query-string value onto a ranking strategy. Empty
// defaults to recency; anything else unknown is rejected.
func ParseOrder(s string) (storage.Order, error) {
	switch s {
	case "", string(storage.OrderRecency):
		return storage.OrderRecency, nil
	case string(storage.OrderPopularity):
		return storage.OrderPopularity, nil
	default:
		return "", fmt.Errorf("order %q: %w", s, ErrInvalidArgument)
	}
}

// RenderFeed returns the requested page under the service's default page
// size.
func (s *Service) RenderFeed(ctx context.Context, page int, order storage.Order) (Page, error) {
	return s.Render(ctx, page, s.pageSize, order)
}

// Render returns a 1-indexed page of size items. A page past the end is
// not an error: it yields an empty item list with the true page count, so
// clients paging blindly terminate cleanly.
func (s *Service) Render(ctx context.Context, page, size int, order storage.Order) (Page, error) {
	if page <= 0 {
		return Page{}, fmt.Errorf("page %d: %w", page, ErrInvalidArgument)
	}
	if size <= 0 {
		return Page{}, fmt.Errorf("page size %d: %w", size, ErrInvalidArgument)
	}

	items, total, err := s.store.GetPage(ctx, page, size, order)
	if err != nil {
		return Page{}, err
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		items = []storage.NewsItem{}
	}

	return Page{
		Items:       items,
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
	}, nil
}

// Latest returns the n most recently ingested items for the plain JSON
// feed endpoint.
func (s *Service) Latest(ctx context.Context, n int) ([]storage.NewsItem, error) {
	return s.store.ListLatest(ctx, n)
}
