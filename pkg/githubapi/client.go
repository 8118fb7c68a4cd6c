// Package githubapi provides a minimal client for the GitHub issue search API.
package githubapi

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

// Client defines the GitHub operations used by the discovery pipeline.
type Client interface {
	// SearchIssues runs an issue search query (GitHub search syntax) and
	// returns up to perPage results ordered by the given sort field.
	SearchIssues(ctx context.Context, query string, opts ...SearchOption) (*IssueSearchResponse, error)
}

// IssueSearchResponse is the parsed search response.
type IssueSearchResponse struct {
	TotalCount int     `json:"total_count"`
	Items      []Issue `json:"items"`
}

// Issue is a single search result item.
type Issue struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	HTMLURL   string    `json:"html_url"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	User      *User     `json:"user"`
	Labels    []Label   `json:"labels"`
	Reactions Reactions `json:"reactions"`
}

// User is the issue author.
type User struct {
	Login string `json:"login"`
}

// Label is an issue label.
type Label struct {
	Name string `json:"name"`
}

// Reactions aggregates reaction counts on an issue.
type Reactions struct {
	TotalCount int `json:"total_count"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	sort    string
	order   string
	perPage int
}

// WithSort sets the sort field (e.g. "reactions").
func WithSort(sort string) SearchOption {
	return func(o *searchOpts) {
		o.sort = sort
	}
}

// WithOrder sets the sort order ("asc" or "desc").
func WithOrder(order string) SearchOption {
	return func(o *searchOpts) {
		o.order = order
	}
}

// WithPerPage caps results per page. Clamped to [1,100].
func WithPerPage(n int) SearchOption {
	return func(o *searchOpts) {
		o.perPage = n
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
	token   string
	hc      *http.Client
	limiter *rate.Limiter
}

// NewClient creates a GitHub search client authenticated with the given token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.github.com",
		token:   token,
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1), // search API allows 30 req/min
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchIssues(ctx context.Context, query string, opts ...SearchOption) (*IssueSearchResponse, error) {
	o := searchOpts{sort: "reactions", order: "desc", perPage: 25}
	for _, opt := range opts {
		opt(&o)
	}
	if o.perPage < 1 {
		o.perPage = 1
	}
	if o.perPage > 100 {
		o.perPage = 100
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "githubapi: rate limit wait")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", o.sort)
	params.Set("order", o.order)
	params.Set("per_page", strconv.Itoa(o.perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/issues?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "githubapi: build request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "githubapi: search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "githubapi: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("githubapi: search returned %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var out IssueSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "githubapi: decode response")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
