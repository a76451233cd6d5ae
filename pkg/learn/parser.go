package learn

import (
	"encoding/json"
	"strings"

	"github.com/unisco/ticketlearn/pkg/errors"
)

// ResponseParser decodes a model response into a value. It is injected
// into cores so parsing tolerance stays a local, testable choice instead
// of process-wide state.
type ResponseParser interface {
	Parse(text string, v interface{}) error
}

// FencedJSONParser tolerates markdown code fences around JSON payloads,
// which chat models routinely emit.
type FencedJSONParser struct{}

func (FencedJSONParser) Parse(text string, v interface{}) error {
	cleaned := strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(cleaned, "```json"); ok {
		cleaned = after
	} else if after, ok := strings.CutPrefix(cleaned, "```"); ok {
		cleaned = after
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return errors.Wrap(err, errors.InvalidResponse, "parse model response")
	}
	return nil
}
