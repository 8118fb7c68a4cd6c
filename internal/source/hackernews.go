package source

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/config"
	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/pkg/algolia"
)

// DefaultHackerNewsPolicy holds the stock scoring heuristics for HN items.
var DefaultHackerNewsPolicy = ScorePolicy{
	BaseConfidence:  0.5,
	EngagementBoost: []Boost{{Threshold: 10, Add: 0.2}, {Threshold: 50, Add: 0.1}},
	CommentBoost:    []Boost{{Threshold: 5, Add: 0.1}, {Threshold: 20, Add: 0.1}},
	RecencyBuckets:  []RecencyBucket{{1, 1.0}, {7, 0.8}, {30, 0.5}},
	RecencyFloor:    0.2,
	FrequencyNorm:   15,
}

// HackerNewsAdapter discovers problems from the Hacker News Algolia index.
type HackerNewsAdapter struct {
	cfg    config.HackerNewsConfig
	client algolia.Client
	policy ScorePolicy
	now    func() time.Time
}

// NewHackerNewsAdapter creates the adapter with the given client and
// scoring policy.
func NewHackerNewsAdapter(cfg config.HackerNewsConfig, client algolia.Client, policy ScorePolicy) *HackerNewsAdapter {
	return &HackerNewsAdapter{cfg: cfg, client: client, policy: policy, now: time.Now}
}

func (a *HackerNewsAdapter) Name() string { return "hackernews" }

// IsConfigured requires the source to be enabled with a non-empty query.
func (a *HackerNewsAdapter) IsConfigured() bool {
	return a.cfg.Enabled && strings.TrimSpace(a.cfg.Query) != ""
}

func (a *HackerNewsAdapter) Discover(ctx context.Context, limit int) ([]model.Problem, error) {
	if !a.IsConfigured() {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	fetch := limit
	if a.cfg.Limit > 0 && a.cfg.Limit < fetch {
		fetch = a.cfg.Limit
	}

	resp, err := a.client.Search(ctx, a.cfg.Query,
		algolia.WithTags(a.cfg.Tags),
		algolia.WithLimit(fetch),
		algolia.ByDate(a.cfg.ByDate),
	)
	if err != nil {
		// A failed search is the whole adapter call; surface it so the
		// aggregator can record a warning and continue.
		return nil, err
	}

	now := a.now().UTC()
	problems := make([]model.Problem, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		title := hit.Title
		if title == "" {
			title = hit.StoryTitle
		}
		if title == "" {
			zap.L().Debug("hackernews: skipping hit without title", zap.String("object_id", hit.ObjectID))
			continue
		}

		body := hit.StoryText
		if body == "" {
			body = hit.CommentText
		}
		text := title + " " + body

		created := hit.CreatedAt()
		p := model.NewProblem(
			TruncateTitle(title),
			TruncateDescription(firstNonEmpty(body, title)),
			ClassifyIntent(text),
			model.SourceHackerNews,
			a.policy.Confidence(hit.Points, hit.NumComments),
			hit.Points,
			a.policy.Recency(created, now),
		)
		p.Keywords = ExtractKeywords(text)
		p.Evidence = []model.EvidenceSnippet{{
			Text:      TruncateEvidence(title),
			SourceURL: hit.ItemURL(),
			Author:    hit.Author,
			Timestamp: &created,
		}}
		problems = append(problems, p)
	}

	SortByComposite(problems, a.policy.FrequencyNorm)
	if len(problems) > limit {
		problems = problems[:limit]
	}
	return problems, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
