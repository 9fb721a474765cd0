package routing

import (
	"strings"
	"unicode"
)

// memoryCues force context retrieval regardless of which tier resolves the
// intent: the user is explicitly referring back to earlier conversation.
var memoryCues = []string{
	"remember",
	"earlier",
	"last time",
	"last week",
	"before",
	"did i tell you",
	"did i say",
	"what did i",
	"you said",
	"we talked about",
}

// forcedContextWordCount is the length above which a message is assumed to
// carry enough referential content to warrant retrieval.
const forcedContextWordCount = 15

// needsForcedContext reports whether the raw text alone demands context
// retrieval, before any intent is known.
func needsForcedContext(text string) bool {
	lower := strings.ToLower(text)
	if containsAny(lower, memoryCues) {
		return true
	}
	return wordCount(text) > forcedContextWordCount
}

// wordCount counts whitespace-separated tokens.
func wordCount(s string) int {
	return len(strings.FieldsFunc(s, unicode.IsSpace))
}

// truncate truncates a string to maxLen runes (Unicode-safe).
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// containsAny checks if s contains any of the patterns.
func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// normalizeInput lowercases and strips terminal punctuation for matching.
func normalizeInput(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.TrimRight(lower, " .!?")
}
