package memory

import (
	"strings"
	"unicode"
)

// FactExtractor produces candidate persistent facts from a user message.
// Implementations must be pure; deduplication against already-persisted
// facts happens in Update.
type FactExtractor interface {
	Extract(text string) []string
}

// ExtractorFunc adapts a function to the FactExtractor interface.
type ExtractorFunc func(text string) []string

// Extract implements FactExtractor.
func (f ExtractorFunc) Extract(text string) []string {
	return f(text)
}

// DefaultExtractor is the built-in keyword-based policy. It looks for
// self-disclosure phrases and keeps the sentence containing them, which is
// deliberately simple: the policy is pluggable for anything smarter.
var DefaultExtractor FactExtractor = ExtractorFunc(extractKeywordFacts)

// factMarkers are phrases that usually introduce a durable personal fact.
var factMarkers = []string{
	"my name is",
	"call me",
	"i live in",
	"i work as",
	"i work at",
	"my birthday is",
	"i like",
	"i love",
	"i hate",
	"i'm allergic to",
	"my favorite",
	// Korean self-disclosure markers, mirroring the trigger examples.
	"내 이름은",
	"제 이름은",
	"나는",
	"저는",
	"좋아해",
	"싫어해",
}

// extractKeywordFacts returns each sentence of text containing a fact
// marker, trimmed, longest first occurrence wins on duplicates upstream.
func extractKeywordFacts(text string) []string {
	var facts []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, marker := range factMarkers {
			if strings.Contains(lower, marker) {
				facts = append(facts, sentence)
				break
			}
		}
	}
	return facts
}

// splitSentences breaks text on sentence-ending punctuation and newlines.
func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', '\n':
			return true
		}
		return false
	})
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimFunc(s, unicode.IsSpace)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
