package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"minutegen/internal/domain"
)

func sampleDocument() Document {
	wer := 0.12
	return Document{
		Metadata: domain.MeetingMetadata{
			Title:        "Release planning",
			Date:         "2026-08-20",
			Participants: []string{"Dana", "Robin"},
		},
		Minutes: domain.MinutesDocument{
			Summary:     "The team agreed on the release plan.",
			Decisions:   []string{"Ship on Friday"},
			ActionItems: []domain.ActionItem{{Text: "Prepare release notes", Owner: "Dana", DueDate: "2026-08-22"}},
			NextSteps:   []string{"Review the rollout checklist"},
		},
		Report:   domain.EvaluationReport{WER: &wer},
		Duration: "12 minutes",
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	data, err := Render("json", sampleDocument())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var got struct {
		Metadata domain.MeetingMetadata  `json:"metadata"`
		Duration string                  `json:"estimatedDuration"`
		Minutes  domain.MinutesDocument  `json:"minutes"`
		Report   domain.EvaluationReport `json:"report"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode rendered json: %v", err)
	}
	if got.Metadata.Title != "Release planning" || got.Duration != "12 minutes" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Report.WER == nil || *got.Report.WER != 0.12 {
		t.Fatalf("report lost in rendering: %+v", got.Report)
	}
}

func TestRenderHTML(t *testing.T) {
	data, err := Render("html", sampleDocument())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(data)

	for _, want := range []string{
		"Release planning",
		"Ship on Friday",
		"Prepare release notes",
		"Dana",
		"Review the rollout checklist",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered html missing %q", want)
		}
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	doc := sampleDocument()
	doc.Minutes.Summary = `<script>alert("x")</script>`

	data, err := Render("html", doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(data), "<script>") {
		t.Fatal("summary not escaped")
	}
}

func TestRenderPDF(t *testing.T) {
	data, err := Render("pdf", sampleDocument())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not start with a PDF header: %q", data[:minLen(len(data), 8)])
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render("docx", sampleDocument()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSupported(t *testing.T) {
	for _, format := range []string{"json", "html", "pdf", "PDF"} {
		if !Supported(format) {
			t.Fatalf("Supported(%q) = false", format)
		}
	}
	for _, format := range []string{"docx", "txt", ""} {
		if Supported(format) {
			t.Fatalf("Supported(%q) = true", format)
		}
	}
}

func TestMIMEType(t *testing.T) {
	cases := map[string]string{
		"json":  "application/json",
		"html":  "text/html; charset=utf-8",
		"pdf":   "application/pdf",
		"other": "application/octet-stream",
	}
	for format, want := range cases {
		if got := MIMEType(format); got != want {
			t.Fatalf("MIMEType(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration(strings.Repeat("word ", 450)); got != "3 minutes" {
		t.Fatalf("got %q, want 3 minutes", got)
	}
	if got := EstimateDuration("just a few words"); got != "1 minutes" {
		t.Fatalf("got %q, want the 1 minute floor", got)
	}
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}
