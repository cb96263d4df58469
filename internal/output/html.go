package output

import (
	"bytes"
	"fmt"
	"html/template"
)

var htmlTemplate = template.Must(template.New("minutes").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Meeting Minutes - {{.Metadata.Title}}</title>
<style>
body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; line-height: 1.6; }
.header { background-color: #f4f4f4; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
.section { margin-bottom: 30px; }
.action-item { background-color: #fff3cd; padding: 10px; margin: 5px 0; border-left: 4px solid #ffc107; }
.decision { background-color: #d1ecf1; padding: 10px; margin: 5px 0; border-left: 4px solid #17a2b8; }
.degraded { background-color: #f8d7da; padding: 10px; border-left: 4px solid #dc3545; }
h1, h2 { color: #333; }
.meta { color: #666; font-size: 0.9em; }
</style>
</head>
<body>
<div class="header">
<h1>{{if .Metadata.Title}}{{.Metadata.Title}}{{else}}Meeting Minutes{{end}}</h1>
<p class="meta">
{{if .Metadata.Date}}Date: {{.Metadata.Date}}<br>{{end}}
{{if .Metadata.Participants}}Participants: {{range $i, $p := .Metadata.Participants}}{{if $i}}, {{end}}{{$p}}{{end}}<br>{{end}}
{{if .Duration}}Estimated duration: {{.Duration}}{{end}}
</p>
</div>
{{if .Minutes.Degraded}}<div class="degraded">This document was produced via fallback logic after the structured extraction failed.</div>{{end}}
<div class="section">
<h2>Summary</h2>
<p>{{.Minutes.Summary}}</p>
</div>
{{if .Minutes.Decisions}}<div class="section">
<h2>Key Decisions</h2>
{{range .Minutes.Decisions}}<div class="decision">{{.}}</div>
{{end}}</div>{{end}}
{{if .Minutes.ActionItems}}<div class="section">
<h2>Action Items</h2>
{{range .Minutes.ActionItems}}<div class="action-item"><strong>{{.Owner}}</strong>: {{.Text}}{{if .DueDate}} (due {{.DueDate}}){{end}}</div>
{{end}}</div>{{end}}
{{if .Minutes.NextSteps}}<div class="section">
<h2>Next Steps</h2>
<ul>
{{range .Minutes.NextSteps}}<li>{{.}}</li>
{{end}}</ul>
</div>{{end}}
</body>
</html>
`))

func renderHTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
