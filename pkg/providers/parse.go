package providers

import "strings"

// ExtractJSON strips a Markdown code fence if the model wrapped its JSON
// reply in one, and otherwise returns the text between the outermost
// braces. Models routinely decorate structured replies despite being told
// not to; callers parse the returned substring instead of the raw reply.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
