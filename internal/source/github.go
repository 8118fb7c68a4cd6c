package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/config"
	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/pkg/githubapi"
)

// DefaultGitHubPolicy holds the stock scoring heuristics for GitHub issues.
var DefaultGitHubPolicy = ScorePolicy{
	BaseConfidence:  0.5,
	EngagementBoost: []Boost{{Threshold: 5, Add: 0.2}, {Threshold: 20, Add: 0.1}},
	CommentBoost:    []Boost{{Threshold: 3, Add: 0.1}, {Threshold: 10, Add: 0.1}},
	RecencyBuckets:  []RecencyBucket{{7, 1.0}, {30, 0.7}, {90, 0.4}},
	RecencyFloor:    0.2,
	FrequencyNorm:   20,
}

// githubSearchQueries are the label searches mined for problem signals.
var githubSearchQueries = []string{
	"label:bug is:open",
	"label:enhancement is:open",
	"label:help-wanted is:open",
	"label:question is:open",
}

const githubPerQueryCap = 25

// GitHubAdapter discovers problems from GitHub issue search.
type GitHubAdapter struct {
	cfg    config.GitHubConfig
	client githubapi.Client
	policy ScorePolicy
	now    func() time.Time
}

// NewGitHubAdapter creates the adapter with the given client and scoring
// policy.
func NewGitHubAdapter(cfg config.GitHubConfig, client githubapi.Client, policy ScorePolicy) *GitHubAdapter {
	return &GitHubAdapter{cfg: cfg, client: client, policy: policy, now: time.Now}
}

func (a *GitHubAdapter) Name() string { return "github" }

// IsConfigured requires the source to be enabled with an API token.
func (a *GitHubAdapter) IsConfigured() bool {
	return a.cfg.Enabled && a.cfg.Token != ""
}

func (a *GitHubAdapter) Discover(ctx context.Context, limit int) ([]model.Problem, error) {
	if !a.IsConfigured() {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	log := zap.L().With(zap.String("adapter", a.Name()))

	perQuery := limit / len(githubSearchQueries)
	if perQuery < 1 {
		perQuery = 1
	}
	if perQuery > githubPerQueryCap {
		perQuery = githubPerQueryCap
	}

	var problems []model.Problem
	var failed int
	now := a.now().UTC()

	for _, query := range githubSearchQueries {
		if ctx.Err() != nil {
			return problems, ctx.Err()
		}

		resp, err := a.client.SearchIssues(ctx, query,
			githubapi.WithSort("reactions"),
			githubapi.WithOrder("desc"),
			githubapi.WithPerPage(perQuery),
		)
		if err != nil {
			// One broken query degrades to partial results.
			log.Warn("issue search failed", zap.String("query", query), zap.Error(err))
			failed++
			continue
		}

		for _, issue := range resp.Items {
			problems = append(problems, a.extract(issue, now))
		}
	}

	if failed == len(githubSearchQueries) {
		return nil, eris.New("github: all issue searches failed")
	}

	problems = dedupeByTitle(problems)
	SortByComposite(problems, a.policy.FrequencyNorm)
	if len(problems) > limit {
		problems = problems[:limit]
	}
	return problems, nil
}

func (a *GitHubAdapter) extract(issue githubapi.Issue, now time.Time) model.Problem {
	text := issue.Title + " " + issue.Body

	created := issue.CreatedAt.UTC()
	p := model.NewProblem(
		TruncateTitle(issue.Title),
		TruncateDescription(firstNonEmpty(issue.Body, issue.Title)),
		a.classify(issue, text),
		model.SourceGitHub,
		a.policy.Confidence(issue.Reactions.TotalCount, issue.Comments),
		issue.Reactions.TotalCount,
		a.policy.Recency(created, now),
	)
	p.Keywords = ExtractKeywords(text)

	author := ""
	if issue.User != nil {
		author = issue.User.Login
	}
	p.Evidence = []model.EvidenceSnippet{{
		Text:      TruncateEvidence(issue.Title),
		SourceURL: issue.HTMLURL,
		Author:    author,
		Timestamp: &created,
	}}
	return p
}

// classify derives intent from labels first, then from text.
func (a *GitHubAdapter) classify(issue githubapi.Issue, text string) model.Intent {
	var labels []string
	for _, l := range issue.Labels {
		labels = append(labels, strings.ToLower(l.Name))
	}
	lower := strings.ToLower(text)

	switch {
	case contains(labels, "bug") || strings.Contains(lower, "bug") || strings.Contains(lower, "error") || strings.Contains(lower, "crash"):
		return model.IntentPain
	case contains(labels, "enhancement") || contains(labels, "feature"):
		return model.IntentRequest
	default:
		return model.IntentWorkaround
	}
}

// dedupeByTitle drops later problems whose lowercased title was already
// seen, keeping first occurrences.
func dedupeByTitle(problems []model.Problem) []model.Problem {
	seen := make(map[string]struct{}, len(problems))
	out := problems[:0]
	for _, p := range problems {
		key := strings.ToLower(p.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
