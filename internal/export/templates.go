package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var inspectionTemplate *template.Template

var funcMap = template.FuncMap{
	"formatDate":  formatDate,
	"statusLabel": statusLabel,
	"coords":      coords,
}

func init() {
	templateContent, err := templateFS.ReadFile("templates/inspection.html")
	if err != nil {
		inspectionTemplate = template.Must(template.New("inspection").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	inspectionTemplate = template.Must(template.New("inspection").Funcs(funcMap).Parse(string(templateContent)))
}

func formatDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("02/01/2006 15:04")
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatDate(*v)
	default:
		return ""
	}
}

func statusLabel(status string) string {
	switch status {
	case "DRAFT":
		return "Rascunho"
	case "SUBMITTED":
		return "Enviada"
	case "ARCHIVED":
		return "Arquivada"
	default:
		return status
	}
}

func coords(lat, lng *float64) string {
	if lat == nil || lng == nil {
		return ""
	}
	return fmt.Sprintf("%.6f, %.6f", *lat, *lng)
}

// RenderInspectionHTML renders the report template.
func RenderInspectionHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := inspectionTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Inspector}} | {{statusLabel .Status}} | {{formatDate .CreatedAt}}</div>
  {{range .Sections}}
  <h2>{{.Number}}. {{.Title}}</h2>
  <ul>{{range .Items}}<li>{{.Question}}: {{.Answer}} {{.Text}}</li>{{end}}</ul>
  {{end}}
  {{range .Photos}}<h2>{{.Title}}</h2>{{range .Photos}}<img src="{{.URL}}" width="300">{{end}}{{end}}
</body>
</html>`
