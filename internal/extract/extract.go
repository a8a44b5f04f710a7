// Package extract recovers a JSON object from free-form generative AI output.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"atscore/internal/errors"
)

// Strategy names, in the order they are attempted
const (
	StrategyFenced = "fenced-block"
	StrategyBraces = "brace-scan"
	StrategyGreedy = "greedy-regex"
)

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:[a-zA-Z]+)?[ \\t]*\\r?\\n?(.*?)```")
	greedyPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractionError is returned when no strategy yields a JSON object
type ExtractionError struct {
	Attempted []string
	Last      error
}

func (e *ExtractionError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("no JSON object found (tried %s): %v", strings.Join(e.Attempted, ", "), e.Last)
	}
	return fmt.Sprintf("no JSON object found (tried %s)", strings.Join(e.Attempted, ", "))
}

func (e *ExtractionError) Unwrap() error {
	return e.Last
}

// AsAppError wraps the extraction failure in the application error taxonomy
func (e *ExtractionError) AsAppError() *errors.AppError {
	return errors.NewAIError(errors.ErrCodeMalformedAIResponse, "AI response contained no JSON object", e).
		WithContext("strategies", strings.Join(e.Attempted, ","))
}

// JSON returns the first JSON object found in raw. A fenced code block is
// preferred, then the first balanced top-level brace span, then everything
// between the first '{' and the last '}'. Numbers are decoded as json.Number.
func JSON(raw string) (map[string]any, error) {
	failure := &ExtractionError{}

	attempt := func(strategy, candidate string) map[string]any {
		failure.Attempted = append(failure.Attempted, strategy)
		obj, err := decodeObject(candidate)
		if err != nil {
			failure.Last = err
			return nil
		}
		return obj
	}

	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		if obj := attempt(StrategyFenced, m[1]); obj != nil {
			return obj, nil
		}
	}

	if span, ok := firstBalancedObject(raw); ok {
		if obj := attempt(StrategyBraces, span); obj != nil {
			return obj, nil
		}
	}

	if span := greedyPattern.FindString(raw); span != "" {
		if obj := attempt(StrategyGreedy, span); obj != nil {
			return obj, nil
		}
	}

	if len(failure.Attempted) == 0 {
		failure.Attempted = []string{StrategyFenced, StrategyBraces, StrategyGreedy}
	}
	return nil, failure
}

func decodeObject(candidate string) (map[string]any, error) {
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "{") {
		return nil, fmt.Errorf("candidate is not a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	return obj, nil
}

// firstBalancedObject returns the first '{...}' span whose braces balance,
// ignoring braces that appear inside JSON string literals.
func firstBalancedObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
