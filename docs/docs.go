// Package docs is generated by swaggo/swag from the godoc annotations in
// cmd/api and internal/api/handlers. Regenerate with:
//
//	swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Pings the database connection and reports the last keepalive result",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check endpoint",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/HealthResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Returns per-verb success and failure counts, average latency and audit publish failures",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Get statement metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MetricsResponse"}}
                }
            }
        },
        "/statements/insert": {
            "post": {
                "description": "Prepares the query, binds the typed values and returns the generated row id.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Statements"],
                "summary": "Run an INSERT statement",
                "parameters": [
                    {"description": "Statement and parameters", "name": "statement", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatementRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/InsertResponse"}},
                    "400": {"description": "Invalid request, statement or parameters", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Duplicate key", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Statement execution failed", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/statements/select": {
            "post": {
                "description": "Prepares the query, binds the typed values and returns every row with columns in projection order.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Statements"],
                "summary": "Run a SELECT statement",
                "parameters": [
                    {"description": "Statement and parameters", "name": "statement", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SelectResponse"}},
                    "400": {"description": "Invalid request, statement or parameters", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Statement execution failed", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/statements/update": {
            "post": {
                "description": "Prepares the query, binds the typed values and returns the number of affected rows.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Statements"],
                "summary": "Run an UPDATE statement",
                "parameters": [
                    {"description": "Statement and parameters", "name": "statement", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/storage.ExecResult"}},
                    "400": {"description": "Invalid request, statement or parameters", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Duplicate key", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Statement execution failed", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/statements/remove": {
            "post": {
                "description": "Prepares the query, binds the typed values and returns the number of removed rows.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Statements"],
                "summary": "Run a DELETE statement",
                "parameters": [
                    {"description": "Statement and parameters", "name": "statement", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/storage.ExecResult"}},
                    "400": {"description": "Invalid request, statement or parameters", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Statement execution failed", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "service": {"type": "string", "example": "dbclient"},
                "version": {"type": "string", "example": "1.0.0"},
                "database": {"type": "string", "example": "up"},
                "keepalive": {"$ref": "#/definitions/scheduler.Status"}
            }
        },
        "InsertResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 42}
            }
        },
        "MetricsResponse": {
            "type": "object",
            "properties": {
                "operations": {"type": "object", "additionalProperties": {"$ref": "#/definitions/OperationMetrics"}},
                "audit_failures": {"type": "integer", "example": 0}
            }
        },
        "OperationMetrics": {
            "type": "object",
            "properties": {
                "succeeded": {"type": "integer", "example": 120},
                "failed": {"type": "integer", "example": 3},
                "avg_duration_ms": {"type": "number", "example": 1.7}
            }
        },
        "SelectResponse": {
            "type": "object",
            "properties": {
                "rows": {"type": "array", "items": {"type": "object"}},
                "count": {"type": "integer", "example": 1}
            }
        },
        "StatementRequest": {
            "type": "object",
            "properties": {
                "query": {"type": "string", "example": "SELECT id, name FROM users WHERE id = ?"},
                "types": {"type": "string", "example": "i"},
                "values": {"type": "array", "items": {"type": "object"}}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {},
                "trace_id": {"type": "string"}
            }
        },
        "scheduler.Status": {
            "type": "object",
            "properties": {
                "last_ping_at": {"type": "string"},
                "last_latency_ns": {"type": "integer"},
                "last_error": {"type": "string"},
                "consecutive_failures": {"type": "integer"}
            }
        },
        "storage.ExecResult": {
            "type": "object",
            "properties": {
                "rows_affected": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Statement Gateway API",
	Description:      "HTTP front end for a minimal database client running prepared INSERT, SELECT, UPDATE and DELETE statements.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
