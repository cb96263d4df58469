// Package output renders a finished job's minutes into the formats the
// job configuration asked for.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"minutegen/internal/domain"
)

// Document bundles everything the renderers need.
type Document struct {
	Metadata domain.MeetingMetadata
	Minutes  domain.MinutesDocument
	Report   domain.EvaluationReport
	Duration string
}

// Render produces the requested format: json, html, or pdf.
func Render(format string, doc Document) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return renderJSON(doc)
	case "html":
		return renderHTML(doc)
	case "pdf":
		return renderPDF(doc)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Supported reports whether Render can produce the format. Submission
// uses it to reject a bad format before any transcription work is spent.
func Supported(format string) bool {
	switch strings.ToLower(format) {
	case "json", "html", "pdf":
		return true
	default:
		return false
	}
}

// MIMEType maps a format to its download content type.
func MIMEType(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "application/json"
	case "html":
		return "text/html; charset=utf-8"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func renderJSON(doc Document) ([]byte, error) {
	payload := struct {
		Metadata domain.MeetingMetadata  `json:"metadata"`
		Duration string                  `json:"estimatedDuration,omitempty"`
		Minutes  domain.MinutesDocument  `json:"minutes"`
		Report   domain.EvaluationReport `json:"report"`
	}{
		Metadata: doc.Metadata,
		Duration: doc.Duration,
		Minutes:  doc.Minutes,
		Report:   doc.Report,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode minutes json: %w", err)
	}
	return data, nil
}

// EstimateDuration derives a human-readable meeting length from the
// transcript word count, at roughly 150 spoken words per minute.
func EstimateDuration(transcriptText string) string {
	words := len(strings.Fields(transcriptText))
	minutes := words / 150
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d minutes", minutes)
}
