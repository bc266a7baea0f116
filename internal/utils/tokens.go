package utils

// Token estimates use a flat 4 characters per token. They drive budget
// warnings and dry-run output only; providers report exact usage.

const charsPerToken = 4

// CountTokens estimates the number of tokens in text. Any non-empty text is
// at least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / charsPerToken
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly limit tokens.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if limit*charsPerToken >= len(runes) {
		return text
	}
	return string(runes[:limit*charsPerToken])
}

// TokenBreakdown maps each labeled section to its estimated token count.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
