package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/config"
	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/pkg/reddit"
)

// DefaultRedditPolicy holds the stock scoring heuristics for Reddit posts.
var DefaultRedditPolicy = ScorePolicy{
	BaseConfidence:  0.5,
	EngagementBoost: []Boost{{Threshold: 10, Add: 0.2}, {Threshold: 50, Add: 0.1}},
	CommentBoost:    []Boost{{Threshold: 5, Add: 0.1}, {Threshold: 20, Add: 0.1}},
	RecencyBuckets:  []RecencyBucket{{1, 1.0}, {7, 0.8}, {30, 0.5}},
	RecencyFloor:    0.2,
	FrequencyNorm:   10,
}

const redditPerSubredditCap = 20

// RedditAdapter discovers problems from subreddit hot listings.
type RedditAdapter struct {
	cfg    config.RedditConfig
	client reddit.Client
	policy ScorePolicy
	now    func() time.Time
}

// NewRedditAdapter creates the adapter with the given client and scoring
// policy.
func NewRedditAdapter(cfg config.RedditConfig, client reddit.Client, policy ScorePolicy) *RedditAdapter {
	return &RedditAdapter{cfg: cfg, client: client, policy: policy, now: time.Now}
}

func (a *RedditAdapter) Name() string { return "reddit" }

// IsConfigured requires the source to be enabled with OAuth app credentials.
func (a *RedditAdapter) IsConfigured() bool {
	return a.cfg.Enabled && a.cfg.ClientID != "" && a.cfg.ClientSecret != ""
}

func (a *RedditAdapter) Discover(ctx context.Context, limit int) ([]model.Problem, error) {
	if !a.IsConfigured() || len(a.cfg.Subreddits) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	log := zap.L().With(zap.String("adapter", a.Name()))

	perSubreddit := limit / len(a.cfg.Subreddits)
	if perSubreddit < 1 {
		perSubreddit = 1
	}
	if perSubreddit > redditPerSubredditCap {
		perSubreddit = redditPerSubredditCap
	}

	var problems []model.Problem
	var failed int
	now := a.now().UTC()

	for _, subreddit := range a.cfg.Subreddits {
		if ctx.Err() != nil {
			return problems, ctx.Err()
		}

		posts, err := a.client.Hot(ctx, subreddit, perSubreddit)
		if err != nil {
			// One broken subreddit degrades to partial results.
			log.Warn("hot listing failed", zap.String("subreddit", subreddit), zap.Error(err))
			failed++
			continue
		}

		for _, post := range posts {
			text := post.Title + " " + post.Selftext
			if !IsProblemText(text) {
				continue
			}
			problems = append(problems, a.extract(post, text, now))
		}
	}

	if failed == len(a.cfg.Subreddits) {
		return nil, eris.New("reddit: all subreddit listings failed")
	}

	SortByComposite(problems, a.policy.FrequencyNorm)
	if len(problems) > limit {
		problems = problems[:limit]
	}
	return problems, nil
}

func (a *RedditAdapter) extract(post reddit.Post, text string, now time.Time) model.Problem {
	created := post.CreatedAt()
	p := model.NewProblem(
		TruncateTitle(post.Title),
		TruncateDescription(firstNonEmpty(post.Selftext, post.Title)),
		ClassifyIntent(text),
		model.SourceReddit,
		a.policy.Confidence(post.Score, post.NumComments),
		post.Score,
		a.policy.Recency(created, now),
	)
	p.Keywords = ExtractKeywords(text)
	p.Evidence = []model.EvidenceSnippet{{
		Text:      TruncateEvidence(post.Title),
		SourceURL: post.URL(),
		Author:    post.Author,
		Timestamp: &created,
	}}
	return p
}
