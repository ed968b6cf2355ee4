package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://hacker-news.firebaseio.com/v0"
	maxResponseBytes = 1 << 20 // 1MB
	listTimeout      = 10 * time.Second
	itemTimeout      = 5 * time.Second
)

// HackerNewsClient talks to a Hacker News-shaped JSON API:
// <base>/topstories.json returning an ID array and <base>/item/<id>.json
// returning item detail.
type HackerNewsClient struct {
	baseURL    string
	listClient *http.Client
	itemClient *http.Client
}

// NewHackerNewsClient builds a client for baseURL, defaulting to the
// official v0 endpoint when empty.
func NewHackerNewsClient(baseURL string) *HackerNewsClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &HackerNewsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		listClient: &http.Client{Timeout: listTimeout},
		itemClient: &http.Client{Timeout: itemTimeout},
	}
}

func (c *HackerNewsClient) TopIDs(ctx context.Context, limit int) ([]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/topstories.json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.listClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hackernews: fetch top stories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hackernews: top stories status %d", resp.StatusCode)
	}

	var ids []int64
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&ids); err != nil {
		return nil, fmt.Errorf("hackernews: decode top stories: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// hnItem mirrors the subset of item fields we care about.
type hnItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Text        string `json:"text"`
}

func (c *HackerNewsClient) Item(ctx context.Context, id int64) (Item, error) {
	endpoint := fmt.Sprintf("%s/item/%d.json", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Item{}, err
	}
	resp, err := c.itemClient.Do(req)
	if err != nil {
		return Item{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Item{}, fmt.Errorf("hackernews: item %d status %d", id, resp.StatusCode)
	}

	var it hnItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&it); err != nil {
		return Item{}, fmt.Errorf("hackernews: decode item %d: %w", id, err)
	}

	return Item{
		ID:          it.ID,
		Type:        it.Type,
		Title:       it.Title,
		URL:         it.URL,
		By:          it.By,
		Time:        it.Time,
		Score:       it.Score,
		Descendants: it.Descendants,
		Text:        it.Text,
	}, nil
}
