package summarize

import (
	"strings"
	"testing"
)

func TestParseMinutesAcceptsFencedJSON(t *testing.T) {
	raw := "Here are the minutes:\n```json\n" + validMinutesJSON + "\n```\nLet me know if you need changes."

	v := ParseMinutes(raw)

	if !v.Valid() {
		t.Fatalf("unexpected problems: %v", v.Problems)
	}
	if v.Doc.Summary == "" || len(v.Doc.Decisions) != 1 {
		t.Fatalf("unexpected document: %+v", v.Doc)
	}
}

func TestParseMinutesRejectsUnknownFields(t *testing.T) {
	raw := `{"summary": "ok", "decisions": [], "actionItems": [], "nextSteps": [], "mood": "great"}`

	v := ParseMinutes(raw)

	if v.Valid() {
		t.Fatal("expected a decode problem for the unknown field")
	}
	if !strings.Contains(v.Problems[0], "decode") {
		t.Fatalf("unexpected problems: %v", v.Problems)
	}
}

func TestParseMinutesFlagsMissingPieces(t *testing.T) {
	raw := `{
	  "summary": "  ",
	  "decisions": ["keep this", ""],
	  "actionItems": [{"text": "", "owner": ""}],
	  "nextSteps": [" "]
	}`

	v := ParseMinutes(raw)

	want := []string{
		"summary is empty",
		"decisions[1] is empty",
		"actionItems[0].text is empty",
		"actionItems[0].owner is missing",
		"nextSteps[0] is empty",
	}
	if len(v.Problems) != len(want) {
		t.Fatalf("got problems %v, want %d of them", v.Problems, len(want))
	}
	for i, p := range want {
		if v.Problems[i] != p {
			t.Fatalf("problem %d = %q, want %q", i, v.Problems[i], p)
		}
	}
}

func TestParseMinutesNoJSONAtAll(t *testing.T) {
	v := ParseMinutes("the model apologized instead of answering")

	if v.Valid() {
		t.Fatal("expected a problem")
	}
}

func TestOnlyMissingOwners(t *testing.T) {
	cases := []struct {
		name     string
		problems []string
		want     bool
	}{
		{"no problems", nil, false},
		{"single missing owner", []string{"actionItems[0].owner is missing"}, true},
		{"several missing owners", []string{"actionItems[0].owner is missing", "actionItems[2].owner is missing"}, true},
		{"mixed problems", []string{"actionItems[0].owner is missing", "summary is empty"}, false},
		{"unrelated problem", []string{"summary is empty"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Validation{Problems: tc.problems}
			if got := v.OnlyMissingOwners(); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
