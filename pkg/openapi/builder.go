// Package openapi renders a service's route table as an OpenAPI 3.1 document.
package openapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Operation is one route as it appears in the document. Path uses chi
// style {name} segments, which become required path parameters.
type Operation struct {
	Method  string
	Path    string
	Summary string
	Tag     string
	Status  int
	Public  bool
}

// Document collects operations and serves the rendered JSON. The JSON is
// rendered on first request; operations added afterwards are not served.
type Document struct {
	title   string
	version string
	ops     []Operation

	once     sync.Once
	rendered []byte
	err      error
}

func New(title, version string) *Document {
	return &Document{title: title, version: version}
}

func (d *Document) Add(op Operation) {
	op.Method = strings.ToLower(op.Method)
	if op.Status == 0 {
		op.Status = http.StatusOK
	}
	d.ops = append(d.ops, op)
}

// Build returns the document as a JSON-ready map. Error responses refer to
// a shared Problem schema.
func (d *Document) Build() map[string]any {
	ops := append([]Operation(nil), d.ops...)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })

	paths := map[string]map[string]any{}
	for _, op := range ops {
		item, ok := paths[op.Path]
		if !ok {
			item = map[string]any{}
			paths[op.Path] = item
		}
		o := map[string]any{
			"operationId": operationID(op.Method, op.Path),
			"summary":     op.Summary,
			"responses": map[string]any{
				strconv.Itoa(op.Status): map[string]any{"description": http.StatusText(op.Status)},
				"default": map[string]any{
					"description": "Error",
					"content": map[string]any{
						"application/problem+json": map[string]any{
							"schema": map[string]any{"$ref": "#/components/schemas/Problem"},
						},
					},
				},
			},
		}
		if op.Tag != "" {
			o["tags"] = []string{op.Tag}
		}
		if params := pathParams(op.Path); len(params) > 0 {
			o["parameters"] = params
		}
		if op.Public {
			o["security"] = []map[string]any{}
		}
		item[op.Method] = o
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": d.title, "version": d.version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearer": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]any{
				"Problem": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"code":    map[string]any{"type": "string"},
						"message": map[string]any{"type": "string"},
						"details": map[string]any{"type": "object"},
					},
					"required": []string{"code", "message"},
				},
			},
		},
		"security": []map[string]any{{"bearer": []string{}}},
	}
}

// Handler serves the rendered document.
func (d *Document) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		d.once.Do(func() { d.rendered, d.err = json.Marshal(d.Build()) })
		if d.err != nil {
			http.Error(w, d.err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(d.rendered)
	}
}

func pathParams(path string) []map[string]any {
	var out []map[string]any
	for _, seg := range strings.Split(path, "/") {
		if len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			out = append(out, map[string]any{
				"name":     seg[1 : len(seg)-1],
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string"},
			})
		}
	}
	return out
}

// operationID turns "get" and "/integrations/{id}/form-schema" into
// "getIntegrationsByIdFormSchema".
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(method)
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "api" || seg == "v1" {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			b.WriteString("By")
			seg = strings.Trim(seg, "{}")
		}
		for _, word := range strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' || r == '.' }) {
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	return b.String()
}
