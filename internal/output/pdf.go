package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
)

func renderPDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Meeting Minutes %s", doc.Metadata.Title), false)
	pdf.SetAuthor("minutegen", false)
	pdf.AddPage()

	title := strings.TrimSpace(doc.Metadata.Title)
	if title == "" {
		title = "Meeting Minutes"
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	if doc.Metadata.Date != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Date: %s", doc.Metadata.Date))
		pdf.Ln(6)
	}
	if len(doc.Metadata.Participants) > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Participants: %s", strings.Join(doc.Metadata.Participants, ", ")))
		pdf.Ln(6)
	}
	if doc.Duration != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Estimated duration: %s", doc.Duration))
		pdf.Ln(6)
	}
	pdf.Ln(6)

	writeSection(pdf, "Summary", []string{doc.Minutes.Summary}, false)

	if len(doc.Minutes.Decisions) > 0 {
		pdf.Ln(8)
		writeSection(pdf, "Key Decisions", doc.Minutes.Decisions, true)
	}

	if len(doc.Minutes.ActionItems) > 0 {
		pdf.Ln(8)
		lines := make([]string, 0, len(doc.Minutes.ActionItems))
		for _, item := range doc.Minutes.ActionItems {
			line := fmt.Sprintf("%s: %s", item.Owner, item.Text)
			if item.DueDate != "" {
				line += fmt.Sprintf(" (due %s)", item.DueDate)
			}
			lines = append(lines, line)
		}
		writeSection(pdf, "Action Items", lines, true)
	}

	if len(doc.Minutes.NextSteps) > 0 {
		pdf.Ln(8)
		writeSection(pdf, "Next Steps", doc.Minutes.NextSteps, true)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, title string, lines []string, bullet bool) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		text := line
		if bullet {
			text = fmt.Sprintf("- %s", line)
		}
		pdf.MultiCell(0, 6, text, "", "L", false)
	}
}
