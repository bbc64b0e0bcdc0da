package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// extractJSONObject pulls the outermost balanced {...} span out of a model
// response. Responses are routinely wrapped in code fences or surrounded by
// prose, so the raw text can never be fed to the JSON parser directly.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("empty response")
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", errors.New("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
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
				return s[start : i+1], nil
			}
		}
	}

	return "", errors.New("unbalanced JSON object in response")
}

// decodeResponse extracts and unmarshals the JSON object embedded in a model
// response. Any parse failure is a hard error for the call; malformed output
// is never trusted.
func decodeResponse(raw string, out any) error {
	span, err := extractJSONObject(raw)
	if err != nil {
		return fmt.Errorf("extract JSON from AI response: %w", err)
	}
	if err := json.Unmarshal([]byte(span), out); err != nil {
		return fmt.Errorf("parse AI response: %w", err)
	}
	return nil
}
