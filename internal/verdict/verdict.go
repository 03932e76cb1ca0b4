// Package verdict extracts analyzer verdicts from free-form model output.
//
// Models are asked for a bare JSON object but often wrap it in prose or a
// markdown fence. Parse tries, in order:
//
//  1. the whole response as JSON
//  2. the first fenced block (```json ... ``` or ``` ... ```)
//  3. the span from the first '{' to the last '}'
//
// and fails with ErrNoPayload when none of them yields a payload.
package verdict

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// DefaultReason is used when a verdict names a user but gives no reason.
const DefaultReason = "inappropriate content"

// RequiredFormat is the JSON shape the analyzer must return.
const RequiredFormat = `{"violations":[{"user_id":"123456","reason":"sarcasm/quarrel/sensitive topic"}]}`

// ErrNoPayload is returned when no JSON payload could be extracted.
var ErrNoPayload = errors.New("no verdict payload in analyzer response")

// Verdict is one candidate violation named by the analyzer. It is not
// trusted until it passes the guardrail.
type Verdict struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// UnmarshalJSON accepts user_id as a string or a number, since models
// often emit numeric platform IDs unquoted. A user_id of any other shape
// leaves UserID blank, and a reason that is not a string leaves Reason
// blank. Only a non-object element is an error.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserID json.RawMessage `json:"user_id"`
		Reason json.RawMessage `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.UserID = parseUserID(raw.UserID)
	v.Reason = ""
	var reason string
	if json.Unmarshal(raw.Reason, &reason) == nil {
		v.Reason = reason
	}
	return nil
}

func parseUserID(id json.RawMessage) string {
	id = bytes.TrimSpace(id)
	if len(id) == 0 {
		return ""
	}
	switch id[0] {
	case '"':
		var s string
		if json.Unmarshal(id, &s) != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if json.Unmarshal(id, &n) != nil {
			return ""
		}
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	// null, bool, object, array
	return ""
}

type payload struct {
	Violations []json.RawMessage `json:"violations"`
}

// Parse extracts verdicts from an analyzer response. A well-formed payload
// without a violations key yields an empty list and no error.
//
// Elements of the violations array are decoded one at a time. An element
// that is not an object becomes a verdict with a blank user, which Explicit
// later drops, so one malformed entry never hides its valid neighbours.
func Parse(response string) ([]Verdict, error) {
	if vs, err := parseDirect(response); err == nil {
		return vs, nil
	}
	if block, ok := extractFenced(response); ok {
		if vs, err := parseDirect(block); err == nil {
			return vs, nil
		}
	}
	if span, ok := extractBraceSpan(response); ok {
		if vs, err := parseDirect(span); err == nil {
			return vs, nil
		}
	}
	return nil, ErrNoPayload
}

func parseDirect(s string) ([]Verdict, error) {
	var p payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &p); err != nil {
		return nil, err
	}
	vs := make([]Verdict, 0, len(p.Violations))
	for _, elem := range p.Violations {
		var v Verdict
		if err := json.Unmarshal(elem, &v); err != nil {
			v = Verdict{}
		}
		if strings.TrimSpace(v.Reason) == "" {
			v.Reason = DefaultReason
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// extractFenced returns the contents of the first markdown code fence,
// preferring a fence tagged json.
func extractFenced(s string) (string, bool) {
	if i := strings.Index(s, "```json"); i >= 0 {
		return fenceBody(s, i+len("```json"))
	}
	if i := strings.Index(s, "```"); i >= 0 {
		return fenceBody(s, i+len("```"))
	}
	return "", false
}

func fenceBody(s string, start int) (string, bool) {
	end := strings.Index(s[start:], "```")
	if end < 0 {
		return strings.TrimSpace(s[start:]), true
	}
	return strings.TrimSpace(s[start : start+end]), true
}

// extractBraceSpan returns s from its first '{' to its last '}'.
func extractBraceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// Explicit drops verdicts whose user ID is missing or blank.
func Explicit(vs []Verdict) (kept []Verdict, dropped int) {
	for _, v := range vs {
		if strings.TrimSpace(v.UserID) == "" {
			dropped++
			continue
		}
		kept = append(kept, v)
	}
	return kept, dropped
}
