package summarize

import (
	"encoding/json"
	"fmt"
	"strings"

	"minutegen/internal/domain"
)

// FallbackOwner is assigned to an action item only after a corrective
// re-prompt failed to produce one.
const FallbackOwner = "unassigned"

// MinutesSchema is the JSON schema the LLM is instructed to emit. It
// mirrors domain.MinutesDocument.
const MinutesSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string", "description": "Executive summary of the meeting"},
    "decisions": {"type": "array", "items": {"type": "string"}},
    "actionItems": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "owner": {"type": "string"},
          "dueDate": {"type": "string"}
        },
        "required": ["text", "owner"],
        "additionalProperties": false
      }
    },
    "nextSteps": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["summary", "decisions", "actionItems", "nextSteps"],
  "additionalProperties": false
}`

// Validation is the tagged outcome of parsing and checking LLM output:
// either a valid document or the list of problems that drives the
// corrective-retry loop.
type Validation struct {
	Doc      domain.MinutesDocument
	Problems []string
}

func (v Validation) Valid() bool {
	return len(v.Problems) == 0
}

// ParseMinutes decodes raw LLM output into a MinutesDocument and
// validates it against the schema rules: every decision, action item,
// and next step must be non-empty, and action items must carry an owner.
func ParseMinutes(raw string) Validation {
	payload := extractJSON(raw)
	if payload == "" {
		return Validation{Problems: []string{"no JSON object found in output"}}
	}

	var doc domain.MinutesDocument
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Validation{Problems: []string{fmt.Sprintf("decode: %v", err)}}
	}

	v := Validation{Doc: doc}
	if strings.TrimSpace(doc.Summary) == "" {
		v.Problems = append(v.Problems, "summary is empty")
	}
	for i, d := range doc.Decisions {
		if strings.TrimSpace(d) == "" {
			v.Problems = append(v.Problems, fmt.Sprintf("decisions[%d] is empty", i))
		}
	}
	for i, item := range doc.ActionItems {
		if strings.TrimSpace(item.Text) == "" {
			v.Problems = append(v.Problems, fmt.Sprintf("actionItems[%d].text is empty", i))
		}
		if strings.TrimSpace(item.Owner) == "" {
			v.Problems = append(v.Problems, fmt.Sprintf("actionItems[%d].owner is missing", i))
		}
	}
	for i, s := range doc.NextSteps {
		if strings.TrimSpace(s) == "" {
			v.Problems = append(v.Problems, fmt.Sprintf("nextSteps[%d] is empty", i))
		}
	}
	return v
}

// OnlyMissingOwners reports whether every problem is a missing action
// item owner, the one validation failure with a defined fallback.
func (v Validation) OnlyMissingOwners() bool {
	if v.Valid() {
		return false
	}
	for _, p := range v.Problems {
		if !strings.Contains(p, "owner is missing") {
			return false
		}
	}
	return true
}

// extractJSON strips markdown fences and surrounding prose, returning
// the outermost JSON object in raw.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
