package server

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

type apiDoc struct {
	Info struct {
		Title       string `yaml:"title"`
		Version     string `yaml:"version"`
		Description string `yaml:"description"`
	} `yaml:"info"`
	Paths map[string]map[string]struct {
		Summary   string               `yaml:"summary"`
		Responses map[string]yaml.Node `yaml:"responses"`
	} `yaml:"paths"`
}

type endpoint struct {
	Method  string
	Path    string
	Summary string
	Codes   string
	Stream  bool
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif;margin:2em}td,th{padding:4px 12px;text-align:left}code{background:#f4f4f4}</style>
</head>
<body>
<h1>{{.Title}} <small>{{.Version}}</small></h1>
<p>{{.Description}}</p>
<table>
<tr><th>Method</th><th>Path</th><th>Summary</th><th>Responses</th></tr>
{{range .Endpoints}}<tr><td>{{.Method}}</td><td><code>{{.Path}}</code></td><td>{{.Summary}}{{if .Stream}} (SSE){{end}}</td><td>{{.Codes}}</td></tr>
{{end}}</table>
<p>Stream frames are <code>data: &lt;json&gt;</code> lines with type <code>connection</code>, <code>status</code>, <code>progress</code> or <code>heartbeat</code>. The stream ends after a <code>completed</code> or <code>failed</code> event.</p>
<p>Machine-readable document: <a href="/api/openapi.yaml">/api/openapi.yaml</a></p>
</body>
</html>
`))

// renderDocs builds the endpoint index page from the embedded OpenAPI document.
func renderDocs(spec []byte) ([]byte, error) {
	var doc apiDoc
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi: %w", err)
	}
	var eps []endpoint
	for path, ops := range doc.Paths {
		for method, op := range ops {
			codes := make([]string, 0, len(op.Responses))
			for code := range op.Responses {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			eps = append(eps, endpoint{
				Method:  strings.ToUpper(method),
				Path:    path,
				Summary: op.Summary,
				Codes:   strings.Join(codes, ", "),
				Stream:  strings.HasSuffix(path, "/stream"),
			})
		}
	}
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].Path != eps[j].Path {
			return eps[i].Path < eps[j].Path
		}
		return eps[i].Method < eps[j].Method
	})

	var buf bytes.Buffer
	err := docsPage.Execute(&buf, map[string]any{
		"Title":       doc.Info.Title,
		"Version":     doc.Info.Version,
		"Description": doc.Info.Description,
		"Endpoints":   eps,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func registerDocs(e *echo.Echo) {
	e.GET("/api/openapi.yaml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", openAPISpec)
	})
	e.GET("/api/docs", func(c echo.Context) error {
		page, err := renderDocs(openAPISpec)
		if err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, page)
	})
}
