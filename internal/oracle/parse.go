// Package oracle implements the Oracle Gateway (spec.md §4.2): prompt
// construction, the LLM call, and the three-stage resilience ladder that
// turns a raw completion into a structured Intent.
//
// The parse ladder is grounded word-for-word in
// original_source/app/core/structured_output.py's
// parse_llm_json_response/_repair_json/_extract_key_values: try strict
// JSON, then markdown-fenced/loose JSON extraction plus common-mistake
// repair, then a permissive key-value regex scan as the last resort before
// giving up and letting the Fallback Ladder take over.
package oracle

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	looseJSONPattern  = regexp.MustCompile(`(?s)(\{.*\})`)
	singleQuotePattern = regexp.MustCompile(`(')`)
	trailingCommaObj  = regexp.MustCompile(`,\s*}`)
	trailingCommaArr  = regexp.MustCompile(`,\s*\]`)
	unquotedKeyPattern = regexp.MustCompile(`([{,]\s*)([a-zA-Z0-9_]+)(\s*:)`)
	nullVariantPattern = regexp.MustCompile(`(?i):\s*none\s*([,}])`)
	kvColonPattern = regexp.MustCompile(`"?([a-zA-Z0-9_]+)"?\s*:\s*"?([^",{}\[\]\n]+)"?`)
)

// ParseResult carries the decoded fields plus which ladder rung produced
// them, for telemetry (spec.md's "supplemented feature": JSON-repair
// diagnostics).
type ParseResult struct {
	Data    map[string]any
	Repaired bool
	Stage   string // "strict" | "fenced" | "repaired" | "kv_scan"
}

// ParseJSON runs the resilience ladder against responseText, returning the
// decoded object map and which stage succeeded. ok=false, with a zero
// ParseResult (nil Data), means every rung failed and the caller should
// fall back.
func ParseJSON(responseText string) (ParseResult, bool) {
	if strings.TrimSpace(responseText) == "" {
		return ParseResult{}, false
	}

	// Stage 1: strict parse.
	if data, ok := tryUnmarshal(responseText); ok {
		return ParseResult{Data: data, Stage: "strict"}, true
	}

	// Stage 2: extract a JSON object, preferring a fenced code block.
	candidate := responseText
	if m := fencedJSONPattern.FindStringSubmatch(responseText); m != nil {
		candidate = m[1]
		if data, ok := tryUnmarshal(candidate); ok {
			return ParseResult{Data: data, Stage: "fenced"}, true
		}
	} else if m := looseJSONPattern.FindStringSubmatch(responseText); m != nil {
		candidate = m[1]
	}

	// Stage 3: repair common LLM JSON mistakes and retry.
	repaired := repairJSON(candidate)
	if data, ok := tryUnmarshal(repaired); ok {
		return ParseResult{Data: data, Repaired: true, Stage: "repaired"}, true
	}

	// Stage 4: permissive key/value regex scan over the whole response.
	if data := extractKeyValues(responseText); len(data) > 0 {
		return ParseResult{Data: data, Repaired: true, Stage: "kv_scan"}, true
	}

	return ParseResult{}, false
}

func tryUnmarshal(text string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, false
	}
	return out, true
}

// repairJSON fixes the handful of formatting mistakes LLMs commonly make:
// single quotes instead of double, trailing commas, unquoted property
// names, and Python-style None.
func repairJSON(text string) string {
	text = singleQuotePattern.ReplaceAllString(text, `"`)
	text = trailingCommaObj.ReplaceAllString(text, "}")
	text = trailingCommaArr.ReplaceAllString(text, "]")
	text = unquotedKeyPattern.ReplaceAllString(text, `$1"$2"$3`)
	text = nullVariantPattern.ReplaceAllString(text, ": null$1")
	return text
}

// extractKeyValues is the last-resort scan: it pulls "key: value" pairs
// (colon-separated only) out of free text and coerces each value to bool,
// nil, int, float, or string.
func extractKeyValues(text string) map[string]any {
	result := make(map[string]any)
	for _, m := range kvColonPattern.FindAllStringSubmatch(text, -1) {
		key := m[1]
		value := strings.TrimSpace(m[2])
		result[key] = coerceValue(value)
	}
	return result
}

func coerceValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	case "none", "null":
		return nil
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
