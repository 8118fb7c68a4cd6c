package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServers(t *testing.T, listingStatus int, listingBody string) (auth *httptest.Server, api *httptest.Server, tokenCalls *int) {
	t.Helper()
	calls := 0
	auth = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)
		w.Write([]byte(`{"access_token":"tok123","expires_in":3600}`))
	}))
	t.Cleanup(auth.Close)

	api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		w.WriteHeader(listingStatus)
		w.Write([]byte(listingBody))
	}))
	t.Cleanup(api.Close)

	return auth, api, &calls
}

func TestHot(t *testing.T) {
	auth, api, tokenCalls := newTestServers(t, http.StatusOK, `{
		"data": {"children": [
			{"data": {"title": "How to fix flaky CI", "selftext": "our pipeline keeps failing", "permalink": "/r/programming/comments/1/", "author": "dev1", "score": 55, "num_comments": 23, "created_utc": 1700000000}},
			{"data": {"title": "Second post", "permalink": "/r/programming/comments/2/", "author": "dev2", "score": 3, "num_comments": 1, "created_utc": 1700000100}}
		]}
	}`)

	c := NewClient("cid", "secret", "shipsmith-test/0.1", WithAuthURL(auth.URL), WithBaseURL(api.URL))
	posts, err := c.Hot(context.Background(), "programming", 20)
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, "How to fix flaky CI", posts[0].Title)
	assert.Equal(t, 55, posts[0].Score)
	assert.Equal(t, "https://reddit.com/r/programming/comments/1/", posts[0].URL())
	assert.Equal(t, 1, *tokenCalls)
}

func TestHot_ReusesToken(t *testing.T) {
	auth, api, tokenCalls := newTestServers(t, http.StatusOK, `{"data":{"children":[]}}`)

	c := NewClient("cid", "secret", "ua", WithAuthURL(auth.URL), WithBaseURL(api.URL))
	_, err := c.Hot(context.Background(), "webdev", 5)
	require.NoError(t, err)
	_, err = c.Hot(context.Background(), "webdev", 5)
	require.NoError(t, err)

	assert.Equal(t, 1, *tokenCalls)
}

func TestHot_ListingError(t *testing.T) {
	auth, api, _ := newTestServers(t, http.StatusServiceUnavailable, `upstream down`)

	c := NewClient("cid", "secret", "ua", WithAuthURL(auth.URL), WithBaseURL(api.URL))
	_, err := c.Hot(context.Background(), "webdev", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHot_AuthError(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer auth.Close()

	c := NewClient("bad", "creds", "ua", WithAuthURL(auth.URL))
	_, err := c.Hot(context.Background(), "webdev", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
