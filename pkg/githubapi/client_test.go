package githubapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchIssues(t *testing.T) {
	var gotAuth, gotQ, gotSort string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQ = r.URL.Query().Get("q")
		gotSort = r.URL.Query().Get("sort")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total_count": 1,
			"items": [{
				"title": "Crash on startup",
				"body": "The app crashes immediately",
				"html_url": "https://github.com/acme/app/issues/7",
				"comments": 4,
				"created_at": "2026-08-01T10:00:00Z",
				"user": {"login": "octocat"},
				"labels": [{"name": "bug"}],
				"reactions": {"total_count": 12}
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("ghp_token", WithBaseURL(srv.URL))
	resp, err := c.SearchIssues(context.Background(), "label:bug is:open", WithSort("reactions"), WithOrder("desc"), WithPerPage(25))
	require.NoError(t, err)

	assert.Equal(t, "Bearer ghp_token", gotAuth)
	assert.Equal(t, "label:bug is:open", gotQ)
	assert.Equal(t, "reactions", gotSort)

	require.Len(t, resp.Items, 1)
	issue := resp.Items[0]
	assert.Equal(t, "Crash on startup", issue.Title)
	assert.Equal(t, 12, issue.Reactions.TotalCount)
	assert.Equal(t, "octocat", issue.User.Login)
	require.Len(t, issue.Labels, 1)
	assert.Equal(t, "bug", issue.Labels[0].Name)
}

func TestSearchIssues_NoToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"total_count":0,"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.SearchIssues(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestSearchIssues_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"API rate limit exceeded"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL))
	_, err := c.SearchIssues(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSearchIssues_ClampsPerPage(t *testing.T) {
	var gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("per_page")
		w.Write([]byte(`{"total_count":0,"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL))
	_, err := c.SearchIssues(context.Background(), "q", WithPerPage(0))
	require.NoError(t, err)
	assert.Equal(t, "1", gotPerPage)
}
