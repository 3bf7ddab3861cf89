package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page template names.
const (
	PageHome  = "home"
	PageAbout = "about"
)

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"field": func(errs map[string]string, name string) string { return errs[name] },
}

// Templates renders pages. It implements echo.Renderer.
type Templates struct {
	pages map[string]*template.Template
}

// NewTemplates parses the embedded views. Each page is parsed together
// with the shared layout so page blocks do not collide.
func NewTemplates() (*Templates, error) {
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse layout: %w", err)
	}
	t := &Templates{pages: map[string]*template.Template{}}
	for _, name := range []string{PageHome, PageAbout} {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("render: clone layout: %w", err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", name, err)
		}
		t.pages[name] = clone
	}
	return t, nil
}

// Execute writes page name with data to w.
func (t *Templates) Execute(w io.Writer, name string, data any) error {
	tmpl, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("render: unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}

// Render satisfies echo.Renderer.
func (t *Templates) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return t.Execute(w, name, data)
}
