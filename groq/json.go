package groq

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*")

// CleanJSON strips Markdown code fences from a model reply.
func CleanJSON(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}

// ExtractObject returns the outermost {...} span of a model reply, or the
// cleaned reply when there is none.
func ExtractObject(s string) string {
	return extractSpan(CleanJSON(s), '{', '}')
}

// ExtractArray returns the outermost [...] span of a model reply, or the
// cleaned reply when there is none.
func ExtractArray(s string) string {
	return extractSpan(CleanJSON(s), '[', ']')
}

func extractSpan(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}

// DecodeObject decodes the JSON object embedded in a model reply into v.
func DecodeObject(reply string, v any) error {
	return json.Unmarshal([]byte(ExtractObject(reply)), v)
}

// DecodeArray decodes the JSON array embedded in a model reply into v.
func DecodeArray(reply string, v any) error {
	return json.Unmarshal([]byte(ExtractArray(reply)), v)
}
