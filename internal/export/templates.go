package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var auditTemplate = template.Must(template.New("audit.html").Funcs(template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05 MST")
	},
}).ParseFS(templateFS, "templates/audit.html"))

// TemplateData holds data for the audit template
type TemplateData struct {
	Title       string
	GeneratedAt time.Time
	RequestedBy string
	Total       int
	Entries     []TemplateEntry
}

type TemplateEntry struct {
	Timestamp time.Time
	UserName  string
	UserID    string
	Action    string
	Details   string
	Severity  string
}

func RenderAuditHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := auditTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
