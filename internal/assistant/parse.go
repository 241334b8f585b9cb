package assistant

import (
	"encoding/json"
	"strings"
)

// rawPayload is the loosely-typed shape of one parsed JSON object from the
// assistant CLI's stdout. Both snake_case and lowercase-fused key forms are
// present on the wire; normalizePayload resolves them through get().
type rawPayload map[string]any

// parseStdout applies the four fallback parsing strategies from spec §4.1,
// in order, returning the first that yields a usable payload. ok is false
// when none of the strategies produced a parseable object.
func parseStdout(stdout string) (rawPayload, bool) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, false
	}

	// Strategy 1: the entire trimmed text is JSON.
	if payload, ok := tryParseAny(trimmed); ok {
		return payload, true
	}

	// Strategy 2: strip a single markdown fence and parse.
	if stripped, ok := stripMarkdownFence(trimmed); ok {
		if payload, ok := tryParseAny(stripped); ok {
			return payload, true
		}
	}

	// Strategy 3: locate the outermost object containing a "type" key.
	if obj, ok := findObjectWithKey(trimmed, "type"); ok {
		if payload, ok := tryParseObject(obj); ok {
			return payload, true
		}
	}

	// Strategy 4: locate the largest terminal JSON object scanning backward.
	if obj, ok := findTerminalObject(trimmed); ok {
		if payload, ok := tryParseObject(obj); ok {
			return payload, true
		}
	}

	return nil, false
}

// FindJSONObject recovers a JSON object embedded in free-form text, using
// the same fallback strategies parseStdout applies to the CLI's raw
// stdout. Callers that need their own typed struct (rather than the
// Invoker's normalized Result) can json.Unmarshal the returned string.
func FindJSONObject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, "{") {
		if _, ok := tryParseObject(trimmed); ok {
			return trimmed, true
		}
	}
	if stripped, ok := stripMarkdownFence(trimmed); ok {
		if _, ok := tryParseObject(stripped); ok {
			return stripped, true
		}
	}
	if obj, ok := findObjectWithKey(trimmed, "type"); ok {
		return obj, true
	}
	if obj, ok := findTerminalObject(trimmed); ok {
		return obj, true
	}
	return "", false
}

// tryParseAny parses text as either a JSON object or an array; for an
// array it locates the element with type="result" and recurses into it.
func tryParseAny(text string) (rawPayload, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, false
	}
	switch t[0] {
	case '{':
		return tryParseObject(t)
	case '[':
		var arr []rawPayload
		if err := json.Unmarshal([]byte(t), &arr); err != nil {
			return nil, false
		}
		for _, elem := range arr {
			if typeOf(elem) == "result" {
				return elem, true
			}
		}
		// No "result" element: fall back to joining all text fields across
		// the array, presented as a synthetic payload.
		var texts []string
		for _, elem := range arr {
			if s, ok := elem["text"].(string); ok && s != "" {
				texts = append(texts, s)
			}
		}
		if len(texts) > 0 {
			return rawPayload{"result": strings.Join(texts, "\n")}, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func tryParseObject(text string) (rawPayload, bool) {
	var obj rawPayload
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func typeOf(p rawPayload) string {
	if s, ok := p["type"].(string); ok {
		return s
	}
	return ""
}

// stripMarkdownFence removes a single leading/trailing ``` fence (with an
// optional language tag such as ```json) from text.
func stripMarkdownFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	rest := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isWord(firstLine) {
			rest = rest[nl+1:]
		}
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), "```")
	return strings.TrimSpace(rest), true
}

func isWord(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// findObjectWithKey locates the outermost brace-balanced object in text
// that, once parsed, contains the given key — scanning forward from the
// first '{' and brace-matching to find candidate object boundaries.
func findObjectWithKey(text string, key string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		var obj rawPayload
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			if _, ok := obj[key]; ok {
				return candidate, true
			}
		}
	}
	return "", false
}

// findTerminalObject scans backward from the last '}' in text, expanding
// until braces balance, to find the largest terminal JSON object.
func findTerminalObject(text string) (string, bool) {
	lastClose := strings.LastIndexByte(text, '}')
	if lastClose < 0 {
		return "", false
	}
	depth := 0
	for i := lastClose; i >= 0; i-- {
		switch text[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return text[i : lastClose+1], true
			}
		}
	}
	return "", false
}

// matchBrace returns the index of the closing brace matching the opening
// brace at start, or -1 if unbalanced.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return i
			}
		}
	}
	return -1
}

// get fetches a key trying both snake_case and the lowercase-fused form
// (e.g. "session_id" and "sessionid").
func (p rawPayload) get(snake string) (any, bool) {
	if v, ok := p[snake]; ok {
		return v, true
	}
	fused := strings.ReplaceAll(snake, "_", "")
	if v, ok := p[fused]; ok {
		return v, true
	}
	return nil, false
}

func (p rawPayload) getString(snake string) string {
	v, ok := p.get(snake)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (p rawPayload) getFloat(snake string) float64 {
	v, ok := p.get(snake)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	}
	return 0
}

func (p rawPayload) getInt(snake string) int {
	return int(p.getFloat(snake))
}

// getCost extracts the run's dollar cost, trying "total_cost_usd" (the
// field name Claude Code's own CLI JSON output uses) before falling back
// to the shorter "cost_usd" some wire variants report instead.
func (p rawPayload) getCost() float64 {
	if _, ok := p.get("total_cost_usd"); ok {
		return p.getFloat("total_cost_usd")
	}
	return p.getFloat("cost_usd")
}

func (p rawPayload) getBool(snake string) bool {
	v, ok := p.get(snake)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (p rawPayload) getModelUsage() map[string]domainModelUsage {
	v, ok := p.get("model_usage")
	if !ok {
		v, ok = p["modelUsage"]
	}
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]domainModelUsage, len(m))
	for model, raw := range m {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out[model] = domainModelUsage{
			InputTokens:              intOf(entry["inputTokens"]),
			OutputTokens:             intOf(entry["outputTokens"]),
			CacheReadInputTokens:     intOf(entry["cacheReadInputTokens"]),
			CacheCreationInputTokens: intOf(entry["cacheCreationInputTokens"]),
		}
	}
	return out
}

func intOf(v any) int {
	f, _ := v.(float64)
	return int(f)
}

// domainModelUsage mirrors domain.ModelUsage; kept local to avoid an import
// cycle with the domain package from this low-level parsing file.
type domainModelUsage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}
