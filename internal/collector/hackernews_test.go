package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeHN(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[101, 102, 103]`)
	})
	mux.HandleFunc("/item/101.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id":101,"type":"story","title":"A story","url":"https://example.com/a","by":"alice","time":1700000000,"score":42,"descendants":7}`)
	})
	mux.HandleFunc("/item/102.json", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return httptest.NewServer(mux)
}

func TestTopIDsCapsAtLimit(t *testing.T) {
	srv := newFakeHN(t)
	defer srv.Close()

	c := NewHackerNewsClient(srv.URL)
	ids, err := c.TopIDs(context.Background(), 2)
	if err != nil {
		t.Fatalf("top ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 101 || ids[1] != 102 {
		t.Fatalf("ids = %v, want [101 102]", ids)
	}
}

func TestTopIDsUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHackerNewsClient(srv.URL)
	if _, err := c.TopIDs(context.Background(), 10); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}

func TestItemDecodesDetail(t *testing.T) {
	srv := newFakeHN(t)
	defer srv.Close()

	c := NewHackerNewsClient(srv.URL)
	it, err := c.Item(context.Background(), 101)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if it.ID != 101 || it.Title != "A story" || it.By != "alice" || it.Score != 42 {
		t.Fatalf("unexpected item: %+v", it)
	}
}

func TestItemErrorStatus(t *testing.T) {
	srv := newFakeHN(t)
	defer srv.Close()

	c := NewHackerNewsClient(srv.URL)
	if _, err := c.Item(context.Background(), 102); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestItemHonorsContext(t *testing.T) {
	srv := newFakeHN(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewHackerNewsClient(srv.URL)
	if _, err := c.Item(ctx, 101); err == nil {
		t.Fatalf("expected error with cancelled context")
	}
}
