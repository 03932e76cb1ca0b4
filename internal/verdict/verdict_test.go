package verdict

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantUsers []string
		wantErr   bool
	}{
		{
			name:      "bare json",
			response:  `{"violations":[{"user_id":"U1","reason":"spam"}]}`,
			wantUsers: []string{"U1"},
		},
		{
			name:      "empty violations",
			response:  `{"violations": []}`,
			wantUsers: []string{},
		},
		{
			name:      "missing violations key",
			response:  `{"result":"ok"}`,
			wantUsers: []string{},
		},
		{
			name:      "json fence with prose",
			response:  "Here is my analysis:\n```json\n{\"violations\":[{\"user_id\":\"U2\",\"reason\":\"insult\"}]}\n```\nThanks.",
			wantUsers: []string{"U2"},
		},
		{
			name:      "untagged fence",
			response:  "```\n{\"violations\":[{\"user_id\":\"U3\",\"reason\":\"ads\"}]}\n```",
			wantUsers: []string{"U3"},
		},
		{
			name:      "brace span inside prose",
			response:  `The result is {"violations":[{"user_id":"U4","reason":"flood"},{"user_id":"U5","reason":"flood"}]} as requested.`,
			wantUsers: []string{"U4", "U5"},
		},
		{
			name:      "broken fence falls through to brace span",
			response:  "```json\nnot json\n``` but later {\"violations\":[{\"user_id\":\"U6\",\"reason\":\"x\"}]}",
			wantUsers: []string{"U6"},
		},
		{
			name:      "numeric user id",
			response:  `{"violations":[{"user_id":123456,"reason":"spam"}]}`,
			wantUsers: []string{"123456"},
		},
		{
			name:      "non-string reason keeps both verdicts",
			response:  `{"violations":[{"user_id":"U1","reason":"spam"},{"user_id":"U2","reason":123}]}`,
			wantUsers: []string{"U1", "U2"},
		},
		{
			name:      "object user id is blanked",
			response:  `{"violations":[{"user_id":"U1","reason":"spam"},{"user_id":{"id":2},"reason":"x"}]}`,
			wantUsers: []string{"U1", ""},
		},
		{
			name:      "bool user id is blanked",
			response:  `{"violations":[{"user_id":true},{"user_id":"U1"}]}`,
			wantUsers: []string{"", "U1"},
		},
		{
			name:      "bare string element is blanked",
			response:  `{"violations":[{"user_id":"U1","reason":"spam"},"U3"]}`,
			wantUsers: []string{"U1", ""},
		},
		{
			name:     "violations not an array",
			response: `{"violations":"U1"}`,
			wantErr:  true,
		},
		{
			name:     "no json at all",
			response: "I could not find any violations.",
			wantErr:  true,
		},
		{
			name:     "unbalanced braces",
			response: "} nothing here {",
			wantErr:  true,
		},
		{
			name:     "empty response",
			response: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.response)
			if tt.wantErr {
				if !errors.Is(err, ErrNoPayload) {
					t.Fatalf("expected ErrNoPayload, got %v (verdicts %v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantUsers) {
				t.Fatalf("expected %d verdicts, got %d: %v", len(tt.wantUsers), len(got), got)
			}
			for i, v := range got {
				if v.UserID != tt.wantUsers[i] {
					t.Errorf("verdict %d: expected user %q, got %q", i, tt.wantUsers[i], v.UserID)
				}
			}
		})
	}
}

func TestParse_DefaultReason(t *testing.T) {
	got, err := Parse(`{"violations":[{"user_id":"U1"}]}`)
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected result %v, %v", got, err)
	}
	if got[0].Reason != DefaultReason {
		t.Errorf("expected default reason, got %q", got[0].Reason)
	}
}

func TestParse_MalformedNeighbourKeepsValidVerdict(t *testing.T) {
	got, err := Parse(`{"violations":[{"user_id":"U1","reason":"spam"},{"user_id":"U2","reason":123},"U3"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[1].Reason != DefaultReason {
		t.Errorf("non-string reason should fall back to default, got %q", got[1].Reason)
	}
	kept, dropped := Explicit(got)
	if dropped != 1 || len(kept) != 2 || kept[0].UserID != "U1" || kept[0].Reason != "spam" || kept[1].UserID != "U2" {
		t.Errorf("unexpected kept=%v dropped=%d", kept, dropped)
	}
}

func TestExtractFenced(t *testing.T) {
	if _, ok := extractFenced("no fences"); ok {
		t.Error("expected no fence")
	}
	body, ok := extractFenced("a ```json {\"x\":1} ``` b")
	if !ok || body != `{"x":1}` {
		t.Errorf("unexpected body %q ok=%v", body, ok)
	}
	body, ok = extractFenced("```json\n{\"x\":1}")
	if !ok || body != `{"x":1}` {
		t.Errorf("unterminated fence: got %q ok=%v", body, ok)
	}
}

func TestExtractBraceSpan(t *testing.T) {
	span, ok := extractBraceSpan(`pre {"a":{"b":1}} post`)
	if !ok || span != `{"a":{"b":1}}` {
		t.Errorf("unexpected span %q ok=%v", span, ok)
	}
	if _, ok := extractBraceSpan("no braces"); ok {
		t.Error("expected no span")
	}
}

func TestExplicit(t *testing.T) {
	vs := []Verdict{
		{UserID: "U1", Reason: "a"},
		{UserID: "", Reason: "b"},
		{UserID: "   ", Reason: "c"},
		{UserID: "U2", Reason: "d"},
	}
	kept, dropped := Explicit(vs)
	if dropped != 2 || len(kept) != 2 || kept[0].UserID != "U1" || kept[1].UserID != "U2" {
		t.Errorf("unexpected kept=%v dropped=%d", kept, dropped)
	}
}

func TestVerdict_NullUserID(t *testing.T) {
	got, err := Parse(`{"violations":[{"user_id":null,"reason":"x"}]}`)
	if err != nil || len(got) != 1 || got[0].UserID != "" {
		t.Errorf("expected one verdict with empty user, got %v, %v", got, err)
	}
}
