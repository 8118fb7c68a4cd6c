// Package reddit provides a client for the Reddit listing API using
// application-only OAuth.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Reddit operations used by the discovery pipeline.
type Client interface {
	// Hot returns up to limit posts from the subreddit's hot listing.
	Hot(ctx context.Context, subreddit string, limit int) ([]Post, error)
}

// Post is a single subreddit submission.
type Post struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// CreatedAt returns the post's creation time.
func (p Post) CreatedAt() time.Time {
	return time.Unix(int64(p.CreatedUTC), 0).UTC()
}

// URL returns the canonical reddit.com URL for the post.
func (p Post) URL() string {
	return "https://reddit.com" + p.Permalink
}

type listing struct {
	Data struct {
		Children []struct {
			Data Post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithAuthURL sets a custom token endpoint base URL (for testing).
func WithAuthURL(u string) Option {
	return func(c *httpClient) {
		c.authURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

type httpClient struct {
	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	userAgent    string
	hc           *http.Client
	limiter      *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Reddit client using app-only OAuth credentials.
func NewClient(clientID, clientSecret, userAgent string, opts ...Option) Client {
	c := &httpClient{
		baseURL:      "https://oauth.reddit.com",
		authURL:      "https://www.reddit.com",
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		hc:           &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Hot(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reddit: rate limit wait")
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/r/%s/hot.json?%s", c.baseURL, url.PathEscape(subreddit), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "reddit: hot listing r/%s", subreddit)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("reddit: hot r/%s returned %d: %s", subreddit, resp.StatusCode, truncate(string(body), 200)))
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, eris.Wrap(err, "reddit: decode listing")
	}

	posts := make([]Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

// accessToken returns a cached app-only token, refreshing when expired.
func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "reddit: build token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "reddit: token request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "reddit: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.New(fmt.Sprintf("reddit: token endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", eris.Wrap(err, "reddit: decode token response")
	}
	if tr.AccessToken == "" {
		return "", eris.New("reddit: empty access token")
	}

	c.token = tr.AccessToken
	// Refresh a minute early so in-flight requests never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
