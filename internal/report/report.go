// Package report renders an assessment document in the supported output
// formats. Renderers only read the document; they never re-derive figures.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
	FormatProm     Format = "prom"
)

// Formats lists every supported output format.
var Formats = []Format{FormatJSON, FormatMarkdown, FormatHTML, FormatText, FormatProm}

// ParseFormat accepts a format name; "markdown" is an alias for md.
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "markdown" {
		return FormatMarkdown, nil
	}
	for _, f := range Formats {
		if string(f) == v {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the HTTP media type of f.
func ContentType(f Format) string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatProm:
		return "text/plain; version=0.0.4; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render produces doc in format f.
func Render(doc types.Document, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return BuildJSON(doc)
	case FormatMarkdown:
		return []byte(BuildMarkdown(doc)), nil
	case FormatHTML:
		r, err := NewHTMLRenderer()
		if err != nil {
			return nil, err
		}
		return r.Bytes(doc)
	case FormatText:
		return []byte(BuildText(doc, DefaultTextWidth)), nil
	case FormatProm:
		return BuildPrometheus(doc)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "ms"
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func formatRPS(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "/s"
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}
