package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"MiniShop/internal/auth"
	"MiniShop/pkg/kit"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"welcome",
	"dashboard",
	"products",
	"login",
	"register",
	"verify_notice",
}

// Renderer holds one template set per page, each layered on the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	base, err := template.New("layout.html").
		Funcs(template.FuncMap{"route": URL}).
		ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

type page struct {
	Title       string
	Breadcrumbs []Breadcrumb
	User        *auth.Claims
	Error       string
	Flash       string
	Data        any
}

func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, p page) error {
	t, ok := rd.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	kit.WriteHTML(w, status, &buf)
	return nil
}
