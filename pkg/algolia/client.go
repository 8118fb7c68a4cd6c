// Package algolia provides a client for the Hacker News Algolia search API.
package algolia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Hacker News search operations.
type Client interface {
	// Search queries the Algolia HN index and returns matching stories.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed Algolia response.
type SearchResponse struct {
	Hits []Hit `json:"hits"`
}

// Hit is a single Algolia search hit.
type Hit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryTitle  string `json:"story_title"`
	URL         string `json:"url"`
	StoryURL    string `json:"story_url"`
	CommentText string `json:"comment_text"`
	StoryText   string `json:"story_text"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

// ItemURL returns the best available URL for the hit, falling back to the
// HN item page when the story carries no external link.
func (h Hit) ItemURL() string {
	if h.URL != "" {
		return h.URL
	}
	if h.StoryURL != "" {
		return h.StoryURL
	}
	if h.ObjectID != "" {
		return "https://news.ycombinator.com/item?id=" + h.ObjectID
	}
	return ""
}

// CreatedAt returns the hit's creation time.
func (h Hit) CreatedAt() time.Time {
	return time.Unix(h.CreatedAtI, 0).UTC()
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	tags   string
	limit  int
	byDate bool
}

// WithTags restricts results to the given Algolia tag expression (e.g. "story").
func WithTags(tags string) SearchOption {
	return func(o *searchOpts) {
		o.tags = tags
	}
}

// WithLimit caps the number of hits per page. Clamped to [1,100].
func WithLimit(n int) SearchOption {
	return func(o *searchOpts) {
		o.limit = n
	}
}

// ByDate orders results by recency instead of relevance.
func ByDate(b bool) SearchOption {
	return func(o *searchOpts) {
		o.byDate = b
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

type httpClient struct {
	baseURL string
	hc      *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Algolia HN search client. The client rate-limits
// itself to stay well inside Algolia's public quota.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://hn.algolia.com/api/v1",
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	o := searchOpts{tags: "story", limit: 25, byDate: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit < 1 {
		o.limit = 1
	}
	if o.limit > 100 {
		o.limit = 100
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "algolia: rate limit wait")
	}

	endpoint := c.baseURL + "/search"
	if o.byDate {
		endpoint = c.baseURL + "/search_by_date"
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("hitsPerPage", strconv.Itoa(o.limit))
	if o.tags != "" {
		params.Set("tags", o.tags)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "algolia: build request")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "algolia: search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "algolia: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("algolia: search returned %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "algolia: decode response")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
