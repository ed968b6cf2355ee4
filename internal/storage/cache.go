package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Paged reads are cached in redis under a key that includes a version
// counter. Every mutation INCRs the counter, which retires all cached pages
// at once without wildcard scans. The TTL is only a backstop for entries
// abandoned by version bumps.
const (
	pageVersionKey = "feed:pages:ver"
	pageCacheTTL   = 5 * time.Minute
)

type cachedFeedPage struct {
	Items []NewsItem `json:"items"`
	Total int64      `json:"total"`
}

func (s *Store) pageCacheKey(ctx context.Context, page, size int, order Order) string {
	ver, err := s.redis.Get(ctx, pageVersionKey).Int64()
	if err != nil {
		ver = 0
	}
	return fmt.Sprintf("feed:pages:v%d:%s:%d:%d", ver, order, page, size)
}

func (s *Store) cachedPage(ctx context.Context, page, size int, order Order) ([]NewsItem, int64, bool) {
	if s.redis == nil || s.pendingInvalidate != nil {
		return nil, 0, false
	}
	bs, err := s.redis.Get(ctx, s.pageCacheKey(ctx, page, size, order)).Bytes()
	if err != nil {
		return nil, 0, false
	}
	var cached cachedFeedPage
	if err := json.Unmarshal(bs, &cached); err != nil {
		return nil, 0, false
	}
	return cached.Items, cached.Total, true
}

// storePage caches a page. Transactional views never cache: their rows may
// not be committed yet.
func (s *Store) storePage(ctx context.Context, page, size int, order Order, items []NewsItem, total int64) {
	if s.redis == nil || s.pendingInvalidate != nil {
		return
	}
	bs, err := json.Marshal(cachedFeedPage{Items: items, Total: total})
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, s.pageCacheKey(ctx, page, size, order), bs, pageCacheTTL).Err()
}

// invalidatePages retires every cached page. Called synchronously from
// every item or counter mutation so no request sees a stale ordering. On a
// transactional view the bump is only recorded; Transaction fires it after
// the commit, so a reader racing the open transaction cannot cache
// pre-commit rows under the post-commit version.
func (s *Store) invalidatePages(ctx context.Context) {
	if s.pendingInvalidate != nil {
		*s.pendingInvalidate = true
		return
	}
	if s.redis == nil {
		return
	}
	_ = s.redis.Incr(ctx, pageVersionKey).Err()
}
