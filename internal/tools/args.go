package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/incidentfox/incidentfox/internal/api"
)

// errorPayload reports a handled failure to the agent as {"error": ...}
type errorPayload map[string]interface{}

// DomainError marks the payload for metrics
func (errorPayload) DomainError() bool { return true }

func errorResult(message string) errorPayload {
	return errorPayload{"error": message}
}

// stringList accepts either a JSON array of strings or a string holding a
// serialized JSON array, e.g. "[\"a\", \"b\"]". An empty string is no list.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	raw := data
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*l = nil
			return nil
		}
		raw = []byte(s)
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("expected a JSON array of strings, got %s", truncateRaw(raw))
	}
	*l = items
	return nil
}

func truncateRaw(b []byte) string {
	const max = 80
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// bind decodes tool arguments into dst and validates it. A non-nil result is
// a validation error payload; a non-nil error means the arguments could not
// be decoded at all.
func bind(args map[string]interface{}, dst interface{}) (interface{}, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if errs := api.Validate(dst); errs != nil {
		return errorResult("invalid arguments: " + api.FormatErrors(errs)), nil
	}
	return nil, nil
}

// nullable maps "" to JSON null in echoed payload fields
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
