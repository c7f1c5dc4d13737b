// Package jsonutil decodes JSON out of LLM responses that may arrive wrapped
// in markdown code fences or surrounded by prose.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode strips any markdown fences from raw response text, slices out the
// outermost JSON object or array, and unmarshals it into T.
func Decode[T any](raw string) (T, error) {
	var result T

	body, err := sliceJSON(stripFences(raw))
	if err != nil {
		return result, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	if err := json.Unmarshal([]byte(body), &result); err != nil {
		preview := body
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return result, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}

// stripFences removes a ```json ... ``` (or plain ```) wrapper, returning the
// inner content. Text without a leading fence is returned untouched.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// sliceJSON returns the substring spanning the first { or [ through the last
// matching } or ]. Models occasionally preface the payload with commentary.
func sliceJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	if objIdx == -1 && arrIdx == -1 {
		return "", fmt.Errorf("no JSON content found")
	}

	start, closer := objIdx, "}"
	if objIdx == -1 || (arrIdx != -1 && arrIdx < objIdx) {
		start, closer = arrIdx, "]"
	}

	text = text[start:]
	end := strings.LastIndex(text, closer)
	if end == -1 {
		return "", fmt.Errorf("no closing %s found", closer)
	}
	return text[:end+1], nil
}
