package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject pulls the first JSON object out of free-form model output.
// Generative backends wrap their answer in markdown fences or prose more
// often than not, so the decoder scans for the outermost braces instead of
// requiring a clean document.
func ExtractObject(raw string, target any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("empty response body")
	}

	trimmed = stripFences(trimmed)

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return fmt.Errorf("no JSON object in response")
	}
	end := matchingBrace(trimmed, start)
	if end < 0 {
		return fmt.Errorf("unterminated JSON object in response")
	}

	if err := json.Unmarshal([]byte(trimmed[start:end+1]), target); err != nil {
		return fmt.Errorf("decoding response object: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// matchingBrace returns the index of the brace closing the object opened at
// start, skipping braces inside string literals.
func matchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
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
