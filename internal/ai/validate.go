package ai

import (
	"fmt"
	"strings"
)

// Block lists applied to a query before it ever reaches the model.
var (
	harmfulKeywords = []string{"delete", "drop", "truncate", "alter", "insert", "update"}

	injectionPatterns = []string{
		"ignore", "forget", "disregard", "override", "system", "prompt", "instruction",
		"repeat", "reveal", "show", "print", "display", "output", "return",
		"role:", "assistant:", "user:", "human:", "ai:", "chatgpt", "gpt",
		"pretend", "act as", "you are now", "new instruction", "new rule",
		"do exactly", "follow this", "instead do", "actually do",
		"prompt injection", "jailbreak", "break character",
	}

	dangerousPhrases = []string{
		"ignore everything",
		"forget everything",
		"disregard previous",
		"new instructions",
		"system prompt",
		"repeat this",
		"show prompt",
		"reveal prompt",
		"display prompt",
		"output prompt",
		"print prompt",
	}

	extractionKeywords = []string{
		"training data", "system information", "configuration", "settings",
		"database schema", "table structure", "api key", "token", "password",
	}
)

// ValidateQuery screens a search query: length bounds, SQL-ish keywords, a
// two-strike count of prompt injection patterns, known dangerous phrases
// and system extraction probes. A single injection pattern is tolerated so
// questions like "show me my applications" still work. Returns ok plus a
// user-facing reason when rejected.
func ValidateQuery(query string) (bool, string) {
	if len(strings.TrimSpace(query)) < 3 {
		return false, "Query is too short. Please provide a more detailed question."
	}
	if len(query) > 500 {
		return false, "Query is too long. Please keep it under 500 characters."
	}

	lower := strings.ToLower(query)

	for _, kw := range harmfulKeywords {
		if strings.Contains(lower, kw) {
			return false, fmt.Sprintf("Query contains potentially harmful keyword: '%s'. Please rephrase your question.", kw)
		}
	}

	suspicious := 0
	for _, p := range injectionPatterns {
		if strings.Contains(lower, p) {
			suspicious++
		}
	}
	if suspicious >= 2 {
		return false, "Query appears to contain prompt injection attempts. Please ask a legitimate question about job applications."
	}

	for _, phrase := range dangerousPhrases {
		if strings.Contains(lower, phrase) {
			return false, "Query contains suspicious instructions. Please ask a legitimate question about job applications."
		}
	}

	for _, kw := range extractionKeywords {
		if strings.Contains(lower, kw) {
			return false, "Query attempts to access system information. Please ask about job applications only."
		}
	}

	return true, ""
}
