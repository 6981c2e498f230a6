// Package compliance registers the OpenAPI 2.0 document of the RegRAG
// compliance API with swag. The paths mirror the swag annotations on
// internal/compliance/handler; regenerate with
//
//	swag init -g internal/compliance/router/router.go -o api/swagger/compliance --parseDependency
package compliance

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/compliance/query": {
            "post": {
                "description": "Retrieves evidence per jurisdiction and returns a cited, structured answer.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["compliance"],
                "summary": "Answer a regulatory question",
                "parameters": [
                    {"type": "string", "description": "Language of validation messages (en, zh)", "name": "Accept-Language", "in": "header"},
                    {"description": "Question and optional jurisdiction filter", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.QueryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.Response"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/compliance/ingest": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["corpus"],
                "summary": "Ingest regulatory texts",
                "parameters": [
                    {"description": "Local path or s3://bucket/prefix", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.IngestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/compliance/conflicts": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["compliance"],
                "summary": "Detect cross-jurisdiction conflicts",
                "parameters": [
                    {"description": "Topic and jurisdiction scope; an empty body analyzes everything", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.ConflictsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/compliance/trends": {
            "get": {
                "produces": ["application/json"],
                "tags": ["compliance"],
                "summary": "Regulatory trends by era",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/compliance/requirements": {
            "get": {
                "produces": ["application/json"],
                "tags": ["compliance"],
                "summary": "Requirement map per topic and jurisdiction",
                "parameters": [
                    {"type": "string", "description": "Taxonomy topic id", "name": "topic", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/compliance/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["corpus"],
                "summary": "List ingested documents",
                "parameters": [
                    {"type": "string", "description": "US, EU or BR; comma separated", "name": "jurisdiction", "in": "query"},
                    {"minimum": 0, "type": "integer", "description": "Offset", "name": "offset", "in": "query"},
                    {"maximum": 500, "minimum": 1, "type": "integer", "description": "Page size", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/compliance/documents/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["corpus"],
                "summary": "Get one document",
                "parameters": [
                    {"type": "string", "description": "Document id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/compliance/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Knowledge base statistics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/compliance/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Prometheus metrics",
                "responses": {"200": {"description": "OK", "schema": {"type": "string"}}}
            }
        }
    },
    "definitions": {
        "handler.QueryRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string", "maxLength": 4000},
                "jurisdictions": {"type": "array", "maxItems": 8, "items": {"type": "string"}},
                "top_k": {"type": "integer", "minimum": 1, "maximum": 100},
                "analyze": {"type": "boolean"}
            }
        },
        "handler.IngestRequest": {
            "type": "object",
            "required": ["path"],
            "properties": {
                "path": {"type": "string"}
            }
        },
        "handler.ConflictsRequest": {
            "type": "object",
            "properties": {
                "topic": {"type": "string"},
                "jurisdictions": {"type": "array", "maxItems": 8, "items": {"type": "string"}}
            }
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "http_code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {},
                "request_id": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "RegRAG Compliance API",
	Description:      "Cross-jurisdiction (US, EU, BR) regulatory retrieval, synthesis and conflict analysis.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
