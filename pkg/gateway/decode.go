package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON value in output")

// DecodeJSON extracts the JSON value from model output. Markdown code fences
// and text around a single object or array are tolerated; anything else is
// rejected so that it never reaches the cache.
func DecodeJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if !json.Valid([]byte(s)) {
		start := strings.IndexAny(s, "{[")
		end := strings.LastIndexAny(s, "}]")
		if start < 0 || end <= start {
			return nil, errNoJSON
		}
		s = s[start : end+1]
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("invalid JSON in output: %.64q", s)
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeText stores model output as a JSON string after trimming it.
func DecodeText(text string) (json.RawMessage, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, errors.New("empty output")
	}
	return json.Marshal(t)
}
