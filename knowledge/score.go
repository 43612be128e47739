package knowledge

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Scoring weights. They sum to 1 so composite scores stay in [0,1].
const (
	weightKeyword = 0.40
	weightContent = 0.25
	weightUsage   = 0.20
	weightRecency = 0.15
)

// Recency tuning. Items used within recentWindow score full recency; after
// that the score halves every recencyHalfLife. The exact half-life is a
// tunable, not a correctness requirement.
const (
	recentWindow    = time.Hour
	recencyHalfLife = 7 * 24 * time.Hour
)

// stopWords are query tokens that carry no retrieval signal.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "do": {}, "for": {}, "from": {}, "had": {},
	"has": {}, "have": {}, "he": {}, "her": {}, "his": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "she": {}, "so": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "they": {}, "this": {}, "to": {}, "was": {},
	"we": {}, "were": {}, "what": {}, "when": {}, "where": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// Tokenize lowercases the query, strips punctuation, and drops stop words.
// Duplicate tokens are kept once; order follows first occurrence.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// scoreItem computes the weighted composite relevance of one item.
func scoreItem(it *Item, queryTokens []string, maxUsage int, now time.Time) float64 {
	return weightKeyword*keywordScore(it, queryTokens) +
		weightContent*contentScore(it, queryTokens) +
		weightUsage*usageScore(it, maxUsage) +
		weightRecency*recencyScore(it, now)
}

// keywordScore is the fraction of query tokens found in the item's keyword set.
func keywordScore(it *Item, queryTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	keywords := make(map[string]struct{}, len(it.Keywords))
	for _, k := range it.Keywords {
		keywords[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	matched := 0
	for _, tok := range queryTokens {
		if _, ok := keywords[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// contentScore is the fraction of query tokens occurring as case-insensitive
// substrings of the item's title and content.
func contentScore(it *Item, queryTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	body := strings.ToLower(it.Title + " " + it.Content)
	matched := 0
	for _, tok := range queryTokens {
		if strings.Contains(body, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// usageScore normalizes the item's usage count by the corpus-wide maximum.
func usageScore(it *Item, maxUsage int) float64 {
	if maxUsage < 1 {
		maxUsage = 1
	}
	s := float64(it.UsageCount) / float64(maxUsage)
	if s > 1 {
		return 1
	}
	return s
}

// recencyScore is 1 for never-used or recently used items, decaying by
// half-lives as the item goes unused.
func recencyScore(it *Item, now time.Time) float64 {
	if it.LastUsed.IsZero() {
		return 1
	}
	elapsed := now.Sub(it.LastUsed)
	if elapsed <= recentWindow {
		return 1
	}
	return math.Pow(0.5, float64(elapsed)/float64(recencyHalfLife))
}
