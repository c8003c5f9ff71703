package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the bridge's
// ingress surface: the three OTLP endpoints and /health.
func OpenAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "OTLP Telemetry Bridge",
			"description": "Ingests OTLP HTTP/JSON logs and metrics and projects them into an observability backend as traces, generations, events and scores.",
			"version":     "1.0.0",
		},
		"servers": []map[string]interface{}{
			{"url": "http://localhost:4318", "description": "Local development"},
		},
		"paths": map[string]interface{}{
			"/v1/logs": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Ingest an OTLP logs envelope",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{"$ref": "#/components/schemas/LogsEnvelope"},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Accepted", "content": jsonContent("PartialSuccess")},
						"400": map[string]interface{}{"description": "Malformed input", "content": jsonContent("Error")},
						"413": map[string]interface{}{"description": "Request body too large"},
					},
				},
			},
			"/v1/metrics": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Ingest an OTLP metrics envelope",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{"$ref": "#/components/schemas/MetricsEnvelope"},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Accepted", "content": jsonContent("PartialSuccess")},
						"400": map[string]interface{}{"description": "Malformed input", "content": jsonContent("Error")},
						"413": map[string]interface{}{"description": "Request body too large"},
					},
				},
			},
			"/v1/traces": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Accepted but treated as a no-op",
					"description": "Returns 200 with an empty partialSuccess regardless of body.",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Accepted", "content": jsonContent("PartialSuccess")},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Process and backend connectivity health",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "OK", "content": jsonContent("Health")},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"LogsEnvelope":    map[string]interface{}{"type": "object", "required": []string{"resourceLogs"}},
				"MetricsEnvelope": map[string]interface{}{"type": "object", "required": []string{"resourceMetrics"}},
				"PartialSuccess":  map[string]interface{}{"type": "object", "properties": map[string]interface{}{"partialSuccess": map[string]interface{}{"type": "object"}}},
				"Error":           map[string]interface{}{"type": "object", "properties": map[string]interface{}{"error": map[string]interface{}{"type": "string"}}},
				"Health": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"status":       map[string]interface{}{"type": "string"},
						"uptime":       map[string]interface{}{"type": "number"},
						"sessions":     map[string]interface{}{"type": "integer"},
						"requestCount": map[string]interface{}{"type": "integer"},
						"errorCount":   map[string]interface{}{"type": "integer"},
						"langfuse":     map[string]interface{}{"type": "string"},
					},
				},
			},
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{"type": "http", "scheme": "bearer"},
			},
		},
	}
}

func jsonContent(schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{
			"schema": map[string]interface{}{"$ref": "#/components/schemas/" + schemaRef},
		},
	}
}

// OpenAPIHandler serves the spec as JSON.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(OpenAPISpec())
	}
}

// SwaggerUIHandler serves a minimal Swagger UI page pointed at /openapi.json.
func SwaggerUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>OTLP Telemetry Bridge API</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
    SwaggerUI({
        url: '/openapi.json',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
        layout: "BaseLayout"
    });
    </script>
</body>
</html>`
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}
}
