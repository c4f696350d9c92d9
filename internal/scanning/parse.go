package scanning

import (
	"strings"
)

// extractJSONObject pulls the outermost JSON object out of free text, such as
// a chat reply wrapped in a markdown code block. It reports false when the
// text holds no object.
func extractJSONObject(text string) ([]byte, bool) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, false
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, false
	}

	return []byte(text[startIdx : endIdx+1]), true
}
