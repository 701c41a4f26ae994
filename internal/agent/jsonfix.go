package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// extractJSON pulls the JSON payload out of an LLM response: a fenced
// ```json block first, otherwise the first balanced {...} span.
func extractJSON(s string) string {
	if idx := strings.Index(s, "```json"); idx >= 0 {
		start := idx + 7
		if end := strings.Index(s[start:], "```"); end >= 0 {
			return strings.TrimSpace(s[start : start+end])
		}
	}
	if idx := strings.Index(s, "{"); idx >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := idx; i < len(s); i++ {
			c := s[i]
			if inString {
				if escaped {
					escaped = false
				} else if c == '\\' {
					escaped = true
				} else if c == '"' {
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[idx : i+1]
				}
			}
		}
	}
	return ""
}

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	controlCharPattern   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// sanitizeJSON strips stray control characters LLM output sometimes leaves
// inside string literals and drops trailing commas before a closing
// brace/bracket, both of which break encoding/json but don't change meaning.
func sanitizeJSON(s string) string {
	s = controlCharPattern.ReplaceAllString(s, "")
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// quoteUnquotedKeys fixes the common malformed-JSON case of bare object keys
// (valid in many scripting languages, not in JSON).
func quoteUnquotedKeys(s string) string {
	return unquotedKeyPattern.ReplaceAllString(s, `$1"$2":`)
}

// progressiveTruncate tries to recover a usable JSON object out of a
// response that got cut off mid-generation, by repeatedly trimming back to
// the last comma or closing brace/bracket and re-balancing braces.
func progressiveTruncate(s string) string {
	for end := len(s); end > 0; {
		cut := strings.LastIndexAny(s[:end], ",}])")
		if cut < 0 {
			break
		}
		candidate := s[:cut+1]
		if strings.HasSuffix(candidate, ",") {
			candidate = candidate[:len(candidate)-1]
		}
		open := strings.Count(candidate, "{") - strings.Count(candidate, "}")
		if open > 0 {
			candidate += strings.Repeat("}", open)
		}
		if json.Valid([]byte(candidate)) {
			return candidate
		}
		end = cut
	}
	return ""
}

// parseAgentJSON decodes an LLM round response into target, escalating
// through repair strategies before giving up: direct decode, control-char
// and trailing-comma sanitization, unquoted-key fixing, then progressive
// truncation of a possibly cut-off response. Returns false if every strategy
// fails, letting the caller fall back to a conservative default round
// result rather than erroring the whole retrieval out.
func parseAgentJSON(response string, target any) bool {
	raw := extractJSON(response)
	if raw == "" {
		return false
	}

	candidates := []string{raw, sanitizeJSON(raw)}
	candidates = append(candidates, quoteUnquotedKeys(candidates[len(candidates)-1]))
	if t := progressiveTruncate(sanitizeJSON(raw)); t != "" {
		candidates = append(candidates, t)
	}

	for _, c := range candidates {
		if json.Unmarshal([]byte(c), target) == nil {
			return true
		}
	}
	return false
}
