// Package render turns a view name and data into markup. Handlers treat it
// as a pure function; the templates themselves are deliberately minimal.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %v", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the named view with the given data
func (r *Renderer) Render(w io.Writer, view string, data interface{}) error {
	return r.tmpl.ExecuteTemplate(w, view+".html", data)
}
