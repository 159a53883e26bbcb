package remote

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// The services answer either with a structured payload carrying a documented
// field, or with free text that needs best-effort extraction. Instead of one
// strict parse, every adapter declares an ordered list of strategies which
// are tried until one matches. The order is part of the adapter's contract
// and pinned by tests.

// NumberStrategy tries to pull one numeric value out of a response body.
type NumberStrategy func(body []byte) (float64, bool)

// ExtractNumber runs strategies in order and returns the first match.
func ExtractNumber(body []byte, strategies ...NumberStrategy) (float64, bool) {
	for _, s := range strategies {
		if v, ok := s(body); ok {
			return v, true
		}
	}
	return 0, false
}

// JSONNumberField matches a top-level JSON object field holding a number or
// a numeric string.
func JSONNumberField(name string) NumberStrategy {
	return func(body []byte) (float64, bool) {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(body, &doc); err != nil {
			return 0, false
		}
		raw, ok := doc[name]
		if !ok {
			return 0, false
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
		return 0, false
	}
}

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)

// FreeTextNumber scans at most limit bytes of free text for the first
// numeric token. It is the last resort of every fallback chain; bytes past
// the limit are never inspected.
func FreeTextNumber(limit int) NumberStrategy {
	return func(body []byte) (float64, bool) {
		if limit > 0 && len(body) > limit {
			body = body[:limit]
		}
		m := numberRe.Find(body)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(string(m), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// JSONStringField matches a top-level JSON object field holding a
// non-empty string.
func JSONStringField(name string) func(body []byte) (string, bool) {
	return func(body []byte) (string, bool) {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(body, &doc); err != nil {
			return "", false
		}
		raw, ok := doc[name]
		if !ok {
			return "", false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}
}
