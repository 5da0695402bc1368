// Package llmjson recovers structured data from model output that was asked
// for JSON but may have wrapped it in prose or markdown fences. Malformed
// input never produces an error; it degrades to the caller's default.
package llmjson

import (
	"encoding/json"
	"strings"

	"call-insights-go/internal/logger"
)

const logPrefixLen = 200

// Parse tries each extraction strategy in order and decodes the first
// candidate that is valid JSON into out. It reports whether anything decoded;
// on false, out is untouched and a warning is logged with a truncated prefix
// of the offending text.
func Parse(raw string, out any) bool {
	for _, cand := range candidates(raw) {
		if json.Unmarshal([]byte(cand), out) == nil {
			return true
		}
	}

	log := logger.New().WithField("component", "llmjson")
	if strings.TrimSpace(raw) == "" {
		log.Warn("empty response received from LLM")
	} else {
		log.WithField("response_prefix", truncate(raw, logPrefixLen)).
			Warn("failed to parse JSON from LLM response")
	}
	return false
}

// ParseMap is Parse for callers without a target type. It returns def when
// nothing in raw decodes.
func ParseMap(raw string, def map[string]any) map[string]any {
	var m map[string]any
	if Parse(raw, &m) {
		return m
	}
	return def
}

// candidates yields substrings to attempt, most specific first:
// the whole text, a ```json fence, any fence, then first-{ to last-}.
func candidates(raw string) []string {
	var out []string
	if t := strings.TrimSpace(raw); t != "" {
		out = append(out, t)
	}
	if c, ok := fencedBlock(raw, "```json"); ok {
		out = append(out, c)
	}
	if c, ok := genericFence(raw); ok {
		out = append(out, c)
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		out = append(out, raw[start:end+1])
	}
	return out
}

func fencedBlock(raw, marker string) (string, bool) {
	i := strings.Index(raw, marker)
	if i == -1 {
		return "", false
	}
	start := i + len(marker)
	end := strings.Index(raw[start:], "```")
	if end <= 0 {
		return "", false
	}
	return strings.TrimSpace(raw[start : start+end]), true
}

func genericFence(raw string) (string, bool) {
	i := strings.Index(raw, "```")
	if i == -1 {
		return "", false
	}
	start := i + 3
	// Skip the optional language tag on the opening line.
	if nl := strings.Index(raw[start:], "\n"); nl != -1 {
		start += nl + 1
	}
	end := strings.Index(raw[start:], "```")
	if end <= 0 {
		return "", false
	}
	return strings.TrimSpace(raw[start : start+end]), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
