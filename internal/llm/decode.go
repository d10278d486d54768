package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoObject is returned when the text holds no balanced {...} span
	ErrNoObject = errors.New("no JSON object found in response")

	// ErrMalformedObject is returned when the first {...} span is not valid JSON for v
	ErrMalformedObject = errors.New("malformed JSON object in response")
)

// FirstObject returns the first balanced {...} span of text. Braces inside
// JSON strings are ignored. ok is false when no span closes.
func FirstObject(text string) (span string, ok bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeFirstObject decodes the first balanced {...} span of text into v.
// Failure is an ordinary result for model output: callers are expected to
// check for ErrNoObject and ErrMalformedObject and fall back.
func DecodeFirstObject(text string, v any) error {
	span, ok := FirstObject(text)
	if !ok {
		return ErrNoObject
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	return nil
}
