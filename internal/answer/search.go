package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// maxWebResults bounds how many live results flow into the prompt.
const maxWebResults = 5

// WebResult is one live search hit used for grounding.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// WebSearcher provides live web grounding. The zero-value-free constructor
// keeps the app layer from wiring a half-configured client.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}

// SearXNGClient queries a SearXNG instance's JSON API.
type SearXNGClient struct {
	baseURL string
	client  *http.Client
}

// NewSearXNGClient creates a client for the instance at baseURL.
func NewSearXNGClient(baseURL string) *SearXNGClient {
	return &SearXNGClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Search runs one query and returns at most maxWebResults hits.
func (c *SearXNGClient) Search(ctx context.Context, query string) ([]WebResult, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying searxng: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned status %d", resp.StatusCode)
	}

	var body struct {
		Results []WebResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding searxng response: %w", err)
	}

	results := body.Results
	if len(results) > maxWebResults {
		results = results[:maxWebResults]
	}
	return results, nil
}
