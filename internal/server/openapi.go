package server

import (
	"encoding/json"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

var (
	bearerRequirement = map[string][]string{"bearerAuth": {}}
	apiKeyRequirement = map[string][]string{"apiKeyAuth": {}}
)

// registerOpenAPI serves the generated document under the base path. It is
// rendered once, on first request, after every operation is registered.
func registerOpenAPI(r chi.Router, humaAPI huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := humaAPI.OpenAPI()
			annotateOperations(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

// annotateOperations adds the error envelope as every operation's default
// response and marks all but the public routes as requiring a credential.
func annotateOperations(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Api-Key"}
	authenticated := []map[string][]string{bearerRequirement, apiKeyRequirement}
	oas.Security = authenticated

	var errSchema *huma.Schema
	if oas.Components.Schemas != nil {
		errSchema = oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "Error")
	}
	for route, item := range oas.Paths {
		if item == nil {
			continue
		}
		for _, m := range []struct {
			method string
			op     *huma.Operation
		}{
			{http.MethodGet, item.Get},
			{http.MethodPost, item.Post},
			{http.MethodPut, item.Put},
			{http.MethodPatch, item.Patch},
			{http.MethodDelete, item.Delete},
		} {
			if m.op == nil {
				continue
			}
			if errSchema != nil {
				if m.op.Responses == nil {
					m.op.Responses = map[string]*huma.Response{}
				}
				m.op.Responses["default"] = &huma.Response{
					Description: "Error",
					Content:     map[string]*huma.MediaType{"application/json": {Schema: errSchema}},
				}
			}
			if isPublic(basePath, m.method, route) {
				m.op.Security = []map[string][]string{}
			} else {
				m.op.Security = authenticated
			}
		}
	}
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<title>Do and Earn API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
<div id="ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
<script>window.onload = () => SwaggerUIBundle({url: "{{SPEC_URL}}", dom_id: "#ui"});</script>
<p style="font-family: sans-serif">Send Authorization: Bearer &lt;token&gt; (from POST {{BASE}}/auth/token) or X-Api-Key.</p>
</body>
</html>`

func registerDocs(r chi.Router, basePath string) {
	page := strings.NewReplacer(
		"{{SPEC_URL}}", path.Join("/", basePath, "openapi.json"),
		"{{BASE}}", strings.TrimRight(basePath, "/"),
	).Replace(docsPage)
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
}
