package stats

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// bareNone matches an unquoted None used as a mapping key, as produced by
// upstream Python serialization of frequency distributions.
var bareNone = regexp.MustCompile(`([{,]\s*)None(\s*:)`)

// ParseLangFreq parses one collected lang_fd value into a frequency map.
// The value is either a plain language label (counted once), or a
// string-encoded mapping of label to count. The mapping is accepted in JSON
// object syntax first, then in Python dict repr (single quotes, bare None
// keys) as a fallback.
func ParseLangFreq(raw string) (map[string]int, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return map[string]int{trimmed: 1}, nil
	}

	if freq, err := decodeFreqJSON(trimmed); err == nil {
		return freq, nil
	}
	converted := bareNone.ReplaceAllString(trimmed, `$1"None"$2`)
	converted = strings.ReplaceAll(converted, "'", `"`)
	freq, err := decodeFreqJSON(converted)
	if err != nil {
		return nil, fmt.Errorf("parsing language frequency %q: %w", raw, err)
	}
	return freq, nil
}

// MergeLangFreq parses every collected lang_fd value of a group and merges
// the resulting distributions into a single frequency count.
func MergeLangFreq(values []any) (map[string]int, error) {
	merged := make(map[string]int)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("language value is %v (%T), want string", v, v)
		}
		freq, err := ParseLangFreq(s)
		if err != nil {
			return nil, err
		}
		for lang, n := range freq {
			merged[lang] += n
		}
	}
	return merged, nil
}

func decodeFreqJSON(s string) (map[string]int, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	freq := make(map[string]int, len(raw))
	for lang, v := range raw {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("count for %q is %T, want number", lang, v)
		}
		freq[lang] = int(n)
	}
	return freq, nil
}
