package source

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shipsmith/shipsmith/internal/model"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxEvidenceLen    = 200
	keywordCount      = 10
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "as": {}, "is": {}, "was": {}, "are": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "should": {},
	"could": {}, "may": {}, "might": {}, "can": {}, "i": {}, "you": {},
	"he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "this": {},
	"that": {}, "these": {}, "those": {},
}

// problemKeywords are the phrases that mark a post as problem-indicating.
var problemKeywords = []string{
	"how to", "how do i", "help", "problem", "issue", "stuck", "struggling",
	"can't figure out", "doesn't work", "not working", "error", "bug",
	"pain", "frustrated",
}

var workaroundHints = []string{"workaround", "hack", "temporary fix"}
var requestHints = []string{"request", "feature", "would be nice", "wish"}

// IsProblemText reports whether the text reads like a problem statement.
func IsProblemText(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range problemKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ClassifyIntent buckets free text into the intent taxonomy. Workaround
// hints win over request hints; everything else reads as pain.
func ClassifyIntent(text string) model.Intent {
	lower := strings.ToLower(text)
	for _, hint := range workaroundHints {
		if strings.Contains(lower, hint) {
			return model.IntentWorkaround
		}
	}
	for _, hint := range requestHints {
		if strings.Contains(lower, hint) {
			return model.IntentRequest
		}
	}
	return model.IntentPain
}

// ExtractKeywords returns the most frequent non-stopword terms in the
// text, longest-running count first. Words of three characters or fewer
// are dropped.
func ExtractKeywords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	// Stable ordering: by count desc, first occurrence breaking ties.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > keywordCount {
		order = order[:keywordCount]
	}
	return order
}

// TruncateTitle caps a title for storage.
func TruncateTitle(s string) string {
	return truncate(s, maxTitleLen)
}

// TruncateDescription caps a description for storage.
func TruncateDescription(s string) string {
	return truncate(s, maxDescriptionLen)
}

// TruncateEvidence caps an evidence snippet.
func TruncateEvidence(s string) string {
	return truncate(s, maxEvidenceLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the cut never leaves invalid UTF-8.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
