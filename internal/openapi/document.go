package openapi

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Document builds the OpenAPI 3.1 description of the management surface.
// The document is assembled once at startup and served as-is.
func Document() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "VendHub API",
			Description: "Administrative backend for vending machine operations: API tokens, operators, audit trail, and documents.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: "/"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiToken"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Token",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    schemaOf("integer"),
							"message": schemaOf("string"),
							"field":   schemaOf("string"),
						},
					},
				},
			},
		},
	}
	doc.Components.Schemas["APIToken"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":           schemaOf("string"),
				"name":         schemaOf("string"),
				"description":  schemaOf("string"),
				"prefix":       schemaOf("string"),
				"permissions":  arrayOf("string"),
				"scopes":       arrayOf("string"),
				"ip_whitelist": arrayOf("string"),
				"rate_limit":   schemaOf("integer"),
				"is_active":    schemaOf("boolean"),
				"expires_at":   schemaOf("string"),
				"last_used_at": schemaOf("string"),
				"usage_count":  schemaOf("integer"),
				"created_by":   schemaOf("string"),
				"created_at":   schemaOf("string"),
				"updated_at":   schemaOf("string"),
			},
		},
	}

	doc.Paths = openapi3.NewPaths()
	addPath(doc, "/healthz", "get", "Liveness probe", false)
	addPath(doc, "/readyz", "get", "Readiness probe", false)
	addPath(doc, "/api/v1/system/session", "post", "Operator login", false)
	addPath(doc, "/api/v1/system/session", "delete", "Operator logout", false)
	addPath(doc, "/api/v1/system/token/presets", "get", "Named permission presets", false)
	addPath(doc, "/api/v1/system/token", "get", "List API tokens", true)
	addPath(doc, "/api/v1/system/token", "post", "Create an API token", true)
	addPath(doc, "/api/v1/system/token/stats", "get", "Aggregate token statistics", true)
	addPath(doc, "/api/v1/system/token/{tokenId}", "get", "Get an API token", true)
	addPath(doc, "/api/v1/system/token/{tokenId}", "patch", "Update an API token", true)
	addPath(doc, "/api/v1/system/token/{tokenId}", "delete", "Delete an API token", true)
	addPath(doc, "/api/v1/system/token/{tokenId}/revoke", "post", "Revoke an API token", true)
	addPath(doc, "/api/v1/system/token/{tokenId}/regenerate", "post", "Regenerate an API token", true)
	addPath(doc, "/api/v1/system/operator", "get", "List operators", true)
	addPath(doc, "/api/v1/system/operator", "post", "Create an operator", true)
	addPath(doc, "/api/v1/system/audit", "get", "List audit events", true)
	addPath(doc, "/api/v1/document", "get", "List documents", true)
	addPath(doc, "/api/v1/document", "post", "Upload a document", true)
	addPath(doc, "/api/v1/document/{documentId}", "get", "Get document metadata", true)
	addPath(doc, "/api/v1/document/{documentId}/content", "get", "Download document content", true)
	addPath(doc, "/api/v1/document/{documentId}", "delete", "Delete a document", true)

	return doc
}

func schemaOf(t string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{t}}}
}

func arrayOf(t string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: schemaOf(t),
	}}
}

func addPath(doc *openapi3.T, path, method, summary string, secured bool) {
	item := doc.Paths.Value(path)
	if item == nil {
		item = &openapi3.PathItem{}
		doc.Paths.Set(path, item)
	}

	okDesc := "Successful response"
	errDesc := "Error response"
	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{Description: &okDesc}})
	responses.Set("default", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &errDesc,
		Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
	}})

	op := &openapi3.Operation{
		Summary:   summary,
		Responses: responses,
	}
	if !secured {
		op.Security = &openapi3.SecurityRequirements{}
	}
	item.SetOperation(strings.ToUpper(method), op)
}
