package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type pageRenderer struct {
	env string
}

func newPageRenderer(env string) *pageRenderer {
	return &pageRenderer{
		env: env,
	}
}

func (r *pageRenderer) templatesForRender(contentTemplatePath string) (*template.Template, error) {
	var sourceFS fs.FS
	if r.env == "development" {
		sourceFS = os.DirFS(".")
	} else {
		sourceFS = templateFS
	}

	templates, err := template.New("layout.tmpl").ParseFS(sourceFS, "templates/layout.tmpl", contentTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return templates, nil
}
