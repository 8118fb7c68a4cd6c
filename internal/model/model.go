// Package model defines the domain types shared across the pipeline.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Intent classifies what kind of need a discovered problem expresses.
type Intent string

const (
	IntentPain       Intent = "pain"
	IntentWorkaround Intent = "workaround"
	IntentRequest    Intent = "request"
)

// Source identifies where a problem was discovered. The set is open:
// new adapters introduce new values without touching existing code.
type Source string

const (
	SourceHackerNews    Source = "hackernews"
	SourceGitHub        Source = "github"
	SourceReddit        Source = "reddit"
	SourceStackOverflow Source = "stackoverflow"
)

// ProductType is decided once when a product is defined and never changes.
type ProductType string

const (
	ProductTypeScript    ProductType = "script"
	ProductTypeMicroTool ProductType = "micro_tool"
	ProductTypeGuide     ProductType = "guide"
	ProductTypeTemplate  ProductType = "template"
)

// Stage is one discrete phase of the pipeline.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageDefine   Stage = "define"
	StageBuild    Stage = "build"
	StagePackage  Stage = "package"
	StagePublish  Stage = "publish"
)

// stageOrder gives each stage its position in the pipeline sequence.
var stageOrder = map[Stage]int{
	StageDiscover: 0,
	StageDefine:   1,
	StageBuild:    2,
	StagePackage:  3,
	StagePublish:  4,
}

// Known reports whether s is a recognized pipeline stage.
func (s Stage) Known() bool {
	_, ok := stageOrder[s]
	return ok
}

// AtOrBefore reports whether s comes at or before other in pipeline order.
// Unknown stages compare as after everything.
func (s Stage) AtOrBefore(other Stage) bool {
	a, ok := stageOrder[s]
	if !ok {
		return false
	}
	b, ok := stageOrder[other]
	if !ok {
		return false
	}
	return a <= b
}

// Status is the lifecycle state of a pipeline run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// EvidenceSnippet is one quote backing a discovered problem.
type EvidenceSnippet struct {
	Text      string     `json:"text"`
	SourceURL string     `json:"source_url"`
	Author    string     `json:"author,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Problem is a normalized, scored unit of discovered user pain.
// Immutable after construction.
type Problem struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Intent          Intent            `json:"intent"`
	Source          Source            `json:"source"`
	ConfidenceScore float64           `json:"confidence_score"`
	FrequencyScore  int               `json:"frequency_score"`
	RecencyScore    float64           `json:"recency_score"`
	Evidence        []EvidenceSnippet `json:"evidence"`
	Keywords        []string          `json:"keywords"`
	DiscoveredAt    time.Time         `json:"discovered_at"`
}

// NewProblem builds a Problem with scores clamped to their valid ranges:
// confidence and recency to [0,1], frequency floored at zero.
func NewProblem(title, description string, intent Intent, source Source, confidence float64, frequency int, recency float64) Problem {
	if frequency < 0 {
		frequency = 0
	}
	return Problem{
		ID:              uuid.New().String(),
		Title:           title,
		Description:     description,
		Intent:          intent,
		Source:          source,
		ConfidenceScore: clamp01(confidence),
		FrequencyScore:  frequency,
		RecencyScore:    clamp01(recency),
		DiscoveredAt:    time.Now().UTC(),
	}
}

// Product is a sellable definition derived from exactly one problem.
// Immutable after construction.
type Product struct {
	ID               string      `json:"id"`
	ProblemID        string      `json:"problem_id"`
	Title            string      `json:"title"`
	ProductType      ProductType `json:"product_type"`
	TargetPersona    string      `json:"target_persona"`
	ValueProposition string      `json:"value_proposition"`
	Features         []string    `json:"features"`
	NonGoals         []string    `json:"non_goals"`
	WhyShippable     string      `json:"why_shippable"`
	CreatedAt        time.Time   `json:"created_at"`
}

// NewProduct builds a Product tied to the problem it solves.
func NewProduct(problemID, title string, productType ProductType) Product {
	return Product{
		ID:          uuid.New().String(),
		ProblemID:   problemID,
		Title:       title,
		ProductType: productType,
		CreatedAt:   time.Now().UTC(),
	}
}

// FAQEntry is one question/answer pair on a marketplace listing.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MarketplaceListing is packaging metadata for a product.
// ImpulsePrice never exceeds AnchorPrice.
type MarketplaceListing struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	Title           string     `json:"title"`
	TitleVariants   []string   `json:"title_variants"`
	Description     string     `json:"description"`
	FeatureBullets  []string   `json:"feature_bullets"`
	FAQ             []FAQEntry `json:"faq"`
	AnchorPrice     float64    `json:"anchor_price"`
	ImpulsePrice    float64    `json:"impulse_price"`
	AssetBundlePath string     `json:"asset_bundle_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewMarketplaceListing builds an empty listing for a product. The
// caller fills in copy, pricing, and the bundle path.
func NewMarketplaceListing(productID string) MarketplaceListing {
	return MarketplaceListing{
		ID:        uuid.New().String(),
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
	}
}

// PipelineRun is the mutable record of one orchestration attempt.
// Stage always reflects the most recently started stage; Logs and
// Artifacts are append-only.
type PipelineRun struct {
	ID           string     `json:"id"`
	Stage        Stage      `json:"stage"`
	Status       Status     `json:"status"`
	ProblemID    string     `json:"problem_id,omitempty"`
	ProductID    string     `json:"product_id,omitempty"`
	ListingID    string     `json:"listing_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Logs         []string   `json:"logs"`
	Artifacts    []string   `json:"artifacts"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewPipelineRun creates a running run starting at the given stage.
func NewPipelineRun(start Stage) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New().String(),
		Stage:     start,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// AppendLog adds a timestamped, human-readable log line to the run.
func (r *PipelineRun) AppendLog(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	r.Logs = append(r.Logs, line)
}

// Terminal reports whether the run has reached a final state.
func (r *PipelineRun) Terminal() bool {
	return r.CompletedAt != nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
