// Package docs holds the OpenAPI description served at /docs. Regenerate
// with `swag init -g cmd/api/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "Scoracle"},
        "license": {"name": "MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/players": {
            "get": {
                "description": "Returns fused per-player views ordered by player_id, starting after the given id.",
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "List fused players",
                "parameters": [
                    {"type": "integer", "default": 0, "description": "Return players with player_id greater than this", "name": "after", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Page size (max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/players/{playerID}": {
            "get": {
                "description": "Returns the fused view for one player. Null fields are unknown, never zero.",
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Get fused player",
                "parameters": [
                    {"type": "integer", "description": "Player ID", "name": "playerID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/players/{playerID}/links": {
            "get": {
                "description": "Returns every source id linked to the player with method, confidence and run.",
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Get player identity links",
                "parameters": [
                    {"type": "integer", "description": "Player ID", "name": "playerID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/review/candidates": {
            "get": {
                "description": "Returns pairs a curator should look at, most urgent first.",
                "produces": ["application/json"],
                "tags": ["review"],
                "summary": "List review candidates",
                "parameters": [
                    {"enum": ["merge_conflict", "source_id_taken", "rejected", "below_threshold"], "type": "string", "description": "Filter by kind", "name": "kind", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Max rows (max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/review/missing/{source}": {
            "get": {
                "description": "Returns active identities that hold no id from the given source.",
                "produces": ["application/json"],
                "tags": ["review"],
                "summary": "List players missing a source",
                "parameters": [
                    {"enum": ["statsbomb", "skillcorner", "transfermarkt"], "type": "string", "description": "Source", "name": "source", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/coverage": {
            "get": {
                "description": "Returns player counts per source, per source pair and across all three sources.",
                "produces": ["application/json"],
                "tags": ["review"],
                "summary": "Get coverage summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "detail": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Scoracle Fusion API",
	Description:      "Read-only API over the player identity registry: fused per-player views, identity links, review candidates and coverage. Data-heavy responses are JSON passthrough from Postgres.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
