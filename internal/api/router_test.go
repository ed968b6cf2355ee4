package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mtoman/newsfeed/internal/auth"
	"github.com/mtoman/newsfeed/internal/config"
	"github.com/mtoman/newsfeed/internal/feed"
	"github.com/mtoman/newsfeed/internal/storage"
	"github.com/mtoman/newsfeed/internal/vote"
)

func newTestServer(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := storage.NewWithDB(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{PageSize: 2, AdminToken: "secret", CORSOrigin: "*"}
	srv := NewServer(
		store,
		feed.New(store, cfg.PageSize),
		vote.New(store, false),
		auth.NewHeaderGateway(store),
		cfg,
	)

	r := gin.New()
	srv.RegisterRoutes(r)
	return r, store
}

func seedItems(t *testing.T, store *storage.Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := store.UpsertItem(context.Background(), &storage.NewsItem{
			ID:        int64(i),
			Title:     "item",
			URL:       "https://example.com",
			CreatedAt: time.Unix(int64(1_700_000_000+i), 0),
		})
		if err != nil {
			t.Fatalf("seed item %d: %v", i, err)
		}
	}
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFeedEndpointShape(t *testing.T) {
	r, store := newTestServer(t)
	seedItems(t, store, 3)

	w := do(r, http.MethodGet, "/api/v1/feed?page=2&order=recency", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Code string `json:"code"`
		Data struct {
			Items       []storage.NewsItem `json:"items"`
			CurrentPage int                `json:"current_page"`
			TotalPages  int                `json:"total_pages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "ok" || resp.Data.CurrentPage != 2 || resp.Data.TotalPages != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Data.Items) != 1 {
		t.Fatalf("page 2 of 3 items at size 2 should have 1 item, got %d", len(resp.Data.Items))
	}
}

func TestFeedRejectsBadParams(t *testing.T) {
	r, _ := newTestServer(t)

	if w := do(r, http.MethodGet, "/api/v1/feed?page=zero", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad page: status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/feed?order=hotness", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad order: status = %d", w.Code)
	}
}

func TestNewsfeedReturnsBareArray(t *testing.T) {
	r, store := newTestServer(t)
	seedItems(t, store, 2)

	w := do(r, http.MethodGet, "/newsfeed", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var items []storage.NewsItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0].ID != 2 {
		t.Fatalf("expected newest-first array of 2, got %+v", items)
	}
}

func TestVoteRequiresIdentity(t *testing.T) {
	r, store := newTestServer(t)
	seedItems(t, store, 1)

	w := do(r, http.MethodPost, "/api/v1/items/1/vote", `{"direction":"like"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous vote: status = %d, want 401", w.Code)
	}
}

func TestVoteFlow(t *testing.T) {
	r, store := newTestServer(t)
	seedItems(t, store, 1)
	hdr := map[string]string{"X-User-Email": "alice@example.com", "X-User-Name": "alice"}

	w := do(r, http.MethodPost, "/api/v1/items/1/vote", `{"direction":"dislike"}`, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("vote: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Rate limiter allows one vote per window; the duplicate check comes
	// back as 409 once a request gets through, 429 if throttled first.
	w = do(r, http.MethodPost, "/api/v1/items/1/vote", `{"direction":"dislike"}`, hdr)
	if w.Code != http.StatusConflict && w.Code != http.StatusTooManyRequests {
		t.Fatalf("repeat vote: status = %d, want 409 or 429", w.Code)
	}

	w = do(r, http.MethodPost, "/api/v1/items/1/vote", `{"direction":"sideways"}`, hdr)
	if w.Code != http.StatusBadRequest && w.Code != http.StatusTooManyRequests {
		t.Fatalf("bad direction: status = %d, want 400 or 429", w.Code)
	}
}

func TestVoteUnknownItem(t *testing.T) {
	r, _ := newTestServer(t)
	hdr := map[string]string{"X-User-Email": "bob@example.com"}

	w := do(r, http.MethodPost, "/api/v1/items/999/vote", `{"direction":"like"}`, hdr)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAdminTokenEnforced(t *testing.T) {
	r, _ := newTestServer(t)

	if w := do(r, http.MethodGet, "/api/v1/admin/users", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", w.Code)
	}
	wrong := map[string]string{"X-Admin-Token": "nope"}
	if w := do(r, http.MethodGet, "/api/v1/admin/users", "", wrong); w.Code != http.StatusForbidden {
		t.Fatalf("wrong token: status = %d, want 403", w.Code)
	}
	right := map[string]string{"X-Admin-Token": "secret"}
	if w := do(r, http.MethodGet, "/api/v1/admin/users", "", right); w.Code != http.StatusOK {
		t.Fatalf("right token: status = %d, want 200", w.Code)
	}
}

func TestAdminListItems(t *testing.T) {
	r, store := newTestServer(t)
	seedItems(t, store, 3)
	hdr := map[string]string{"X-Admin-Token": "secret"}

	w := do(r, http.MethodGet, "/api/v1/admin/items", "", hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Items []storage.NewsItem `json:"items"`
			Total int64              `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 3 || len(resp.Data.Items) != 3 {
		t.Fatalf("total = %d items = %d, want 3/3", resp.Data.Total, len(resp.Data.Items))
	}
}

func TestAdminDeleteItem(t *testing.T) {
	r, store := newTestServer(t)
	seedItems(t, store, 1)
	hdr := map[string]string{"X-Admin-Token": "secret"}

	if w := do(r, http.MethodDelete, "/api/v1/admin/items/1", "", hdr); w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/admin/items/1", "", hdr); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", w.Code)
	}
}

func TestAdminUserLifecycle(t *testing.T) {
	r, store := newTestServer(t)
	hdr := map[string]string{"X-Admin-Token": "secret"}

	u, err := store.EnsureUser(context.Background(), "carol", "carol@example.com")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	w := do(r, http.MethodPost, "/api/v1/admin/users/admin", `{"email":"carol@example.com","admin":true}`, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("set admin: status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodDelete, "/api/v1/admin/users/1", "", hdr); w.Code != http.StatusOK {
		t.Fatalf("delete user %d: status = %d", u.ID, w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/admin/users/1", "", hdr); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", w.Code)
	}
}
