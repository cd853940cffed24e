// Package docs registers the Swagger document served under /api/swagger.
package docs

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
        "/optimize": {
            "post": {
                "description": "Upload a .glb file (or an archive holding exactly one) and optimize it with the given settings",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["optimizations"],
                "summary": "Optimize a GLB model",
                "parameters": [
                    {"type": "file", "description": "GLB file or archive", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Optimization settings as JSON (defaults apply when empty)", "name": "config", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Report printed by the optimization script", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "422": {"description": "Optimization script failed", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/optimizations": {
            "get": {
                "description": "Gets all recorded optimization runs, newest first",
                "produces": ["application/json"],
                "tags": ["optimizations"],
                "summary": "List optimization runs",
                "responses": {
                    "200": {"description": "List of runs", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Optimization"}}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/optimizations/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["optimizations"],
                "summary": "Get an optimization run by ID",
                "parameters": [{"type": "string", "description": "Optimization ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run found", "schema": {"$ref": "#/definitions/models.Optimization"}},
                    "400": {"description": "Invalid UUID", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Optimization not found", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            },
            "delete": {
                "description": "Delete a run record and its stored output",
                "tags": ["optimizations"],
                "summary": "Delete an optimization run",
                "parameters": [{"type": "string", "description": "Optimization ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Invalid UUID", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Optimization not found", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/optimizations/{id}/download": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["optimizations"],
                "summary": "Download an optimized GLB",
                "parameters": [{"type": "string", "description": "Optimization ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Optimized GLB file", "schema": {"type": "file"}},
                    "400": {"description": "Invalid UUID", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Optimization not found", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/settings/default": {
            "get": {
                "description": "Settings applied when an optimize request carries no config",
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Default optimization settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Settings"}}
                }
            }
        }
    },
    "definitions": {
        "errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "models.Optimization": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "original_filename": {"type": "string"},
                "content_type": {"type": "string"},
                "input_size": {"type": "integer"},
                "output_size": {"type": "integer"},
                "config": {"type": "string"},
                "report": {"type": "string"},
                "storage_key": {"type": "string"},
                "duration_ms": {"type": "integer"},
                "created_at": {"type": "string"}
            }
        },
        "models.Settings": {
            "type": "object",
            "properties": {
                "draco": {"type": "boolean"},
                "meshopt": {"type": "boolean"},
                "quantize": {"type": "boolean"},
                "textureFormat": {"type": "string", "enum": ["original", "webp", "ktx2"]},
                "maxTextureSize": {"type": "integer"},
                "prune": {"type": "boolean"},
                "dedup": {"type": "boolean"},
                "instance": {"type": "boolean"},
                "join": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "GLB Optimizer API",
	Description:      "Optimizes GLB models with an external helper script and stores the results.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
