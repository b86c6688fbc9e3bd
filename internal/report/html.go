package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

//go:embed templates/report.html.tmpl
var htmlTemplate string

// HTMLRenderer renders the standalone HTML report. Charts are drawn client
// side with Chart.js from the timeline and latency series.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	funcs := template.FuncMap{
		"ms":      formatMs,
		"percent": formatPercent,
		"rps":     formatRPS,
		"count":   formatCount,
		"hasErrors": func(e types.EndpointStat) bool {
			return e.ErrorCount > 0 || e.TimeoutCount > 0
		},
	}
	tmpl, err := template.New("report").Funcs(funcs).Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse HTML template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

func (r *HTMLRenderer) Render(w io.Writer, doc types.Document) error {
	return r.tmpl.Execute(w, doc)
}

func (r *HTMLRenderer) Bytes(doc types.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render HTML report: %w", err)
	}
	return buf.Bytes(), nil
}
