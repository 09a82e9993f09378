// Package swagger holds the OpenAPI document for the HTTP API. It mirrors the
// annotations on cmd/convmem and pkg/api/handlers; `swag init -g
// cmd/convmem/main.go -o docs/swagger` regenerates it.
package swagger

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
        "/api/v1/users/{userID}": {
            "delete": {
                "description": "Delete history, profile, settings and session state for the user",
                "tags": ["privacy"],
                "summary": "Erase all memory",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "Memory erased"},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Erasure incomplete", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/analytics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["memory"],
                "summary": "Summarize conversation analytics",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Analytics summary", "schema": {"$ref": "#/definitions/memory.Summary"}},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/context": {
            "get": {
                "description": "Summary and suggested prompts built from recent history and the profile",
                "produces": ["application/json"],
                "tags": ["memory"],
                "summary": "Reconstruct conversation context",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Reconstructed context", "schema": {"$ref": "#/definitions/memory.Context"}},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/conversations": {
            "post": {
                "description": "Classify and store one query/response exchange in the user's current session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["conversations"],
                "summary": "Record a conversation exchange",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Exchange to record", "name": "exchange", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.recordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Memory disabled for the user", "schema": {"$ref": "#/definitions/handlers.recordResponse"}},
                    "201": {"description": "Exchange recorded", "schema": {"$ref": "#/definitions/handlers.recordResponse"}},
                    "202": {"description": "Exchange buffered, durable write pending", "schema": {"$ref": "#/definitions/handlers.recordResponse"}},
                    "400": {"description": "Invalid request body or validation error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/conversations/{entryID}/feedback": {
            "patch": {
                "consumes": ["application/json"],
                "tags": ["conversations"],
                "summary": "Amend feedback on an entry",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"type": "string", "description": "Entry ID", "name": "entryID", "in": "path", "required": true},
                    {"description": "Feedback value", "name": "feedback", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.feedbackRequest"}}
                ],
                "responses": {
                    "204": {"description": "Feedback stored"},
                    "400": {"description": "Invalid request body or validation error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Entry not found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/export": {
            "get": {
                "produces": ["application/json"],
                "tags": ["privacy"],
                "summary": "Export all memory",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Full export", "schema": {"$ref": "#/definitions/memory.Export"}},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/profile": {
            "get": {
                "produces": ["application/json"],
                "tags": ["memory"],
                "summary": "Get the learned profile",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "User profile", "schema": {"$ref": "#/definitions/memory.UserMemoryProfile"}},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/sessions": {
            "post": {
                "description": "Flush the current session buffer and rotate to a new session id",
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Start a new session",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Session started", "schema": {"$ref": "#/definitions/handlers.sessionResponse"}},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/sessions/current": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get the current session",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Current session", "schema": {"$ref": "#/definitions/memory.SessionInfo"}},
                    "404": {"description": "No active session", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{userID}/settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Get memory settings",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Memory settings", "schema": {"$ref": "#/definitions/memory.MemorySettings"}},
                    "400": {"description": "Invalid user ID", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            },
            "patch": {
                "description": "Apply a partial settings update. Disabling memory clears the session buffer.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Update memory settings",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Settings to change", "name": "patch", "in": "body", "required": true, "schema": {"$ref": "#/definitions/memory.SettingsPatch"}}
                ],
                "responses": {
                    "200": {"description": "Updated settings", "schema": {"$ref": "#/definitions/memory.MemorySettings"}},
                    "400": {"description": "Invalid request body or validation error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.feedbackRequest": {
            "type": "object",
            "required": ["feedback"],
            "properties": {
                "feedback": {"type": "string", "enum": ["helpful", "not_helpful"]}
            }
        },
        "handlers.recordRequest": {
            "type": "object",
            "required": ["query"],
            "properties": {
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}},
                "query": {"type": "string", "maxLength": 8000},
                "response": {"type": "string", "maxLength": 32000}
            }
        },
        "handlers.recordResponse": {
            "type": "object",
            "properties": {
                "entry_id": {"type": "string"},
                "error": {"type": "string"},
                "outcome": {"type": "string", "enum": ["recorded", "buffered", "disabled", "failed"]},
                "query_type": {"type": "string"},
                "session_id": {"type": "string"}
            }
        },
        "handlers.sessionResponse": {
            "type": "object",
            "properties": {
                "flush_error": {"type": "string"},
                "session_id": {"type": "string"}
            }
        },
        "memory.ConversationEntry": {
            "type": "object",
            "properties": {
                "decrypt_failed": {"type": "boolean"},
                "id": {"type": "string"},
                "is_encrypted": {"type": "boolean"},
                "mentioned_entities": {"type": "array", "items": {"type": "string"}},
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}},
                "query": {"type": "string"},
                "query_type": {"type": "string"},
                "requested_attributes": {"type": "array", "items": {"type": "string"}},
                "response": {"type": "string"},
                "session_id": {"type": "string"},
                "timestamp": {"type": "string"},
                "user_feedback": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "memory.Context": {
            "type": "object",
            "properties": {
                "suggested_prompts": {"type": "array", "items": {"type": "string"}},
                "summary": {"type": "string"}
            }
        },
        "memory.Export": {
            "type": "object",
            "properties": {
                "conversations": {"type": "array", "items": {"$ref": "#/definitions/memory.ConversationEntry"}},
                "exported_at": {"type": "string"},
                "profile": {"$ref": "#/definitions/memory.UserMemoryProfile"},
                "settings": {"$ref": "#/definitions/memory.MemorySettings"},
                "user_id": {"type": "string"}
            }
        },
        "memory.MemorySettings": {
            "type": "object",
            "properties": {
                "allow_analytics": {"type": "boolean"},
                "auto_session_save": {"type": "boolean"},
                "enabled": {"type": "boolean"},
                "encrypt_sensitive_data": {"type": "boolean"},
                "retention_days": {"type": "integer"}
            }
        },
        "memory.RankedItem": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "name": {"type": "string"}
            }
        },
        "memory.SessionInfo": {
            "type": "object",
            "properties": {
                "buffered": {"type": "integer"},
                "pending": {"type": "integer"},
                "session_id": {"type": "string"},
                "started_at": {"type": "string"}
            }
        },
        "memory.SettingsPatch": {
            "type": "object",
            "properties": {
                "allow_analytics": {"type": "boolean"},
                "auto_session_save": {"type": "boolean"},
                "enabled": {"type": "boolean"},
                "encrypt_sensitive_data": {"type": "boolean"},
                "retention_days": {"type": "integer", "minimum": 0, "maximum": 3650}
            }
        },
        "memory.Summary": {
            "type": "object",
            "properties": {
                "average_session_length": {"type": "number"},
                "query_type_distribution": {"type": "object", "additionalProperties": {"type": "integer"}},
                "top_attributes": {"type": "array", "items": {"$ref": "#/definitions/memory.RankedItem"}},
                "top_entities": {"type": "array", "items": {"$ref": "#/definitions/memory.RankedItem"}},
                "total_conversations": {"type": "integer"},
                "total_sessions": {"type": "integer"},
                "weekly_activity": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "memory.UserMemoryProfile": {
            "type": "object",
            "properties": {
                "avoided_attributes": {"type": "array", "items": {"type": "string"}},
                "avoided_entities": {"type": "array", "items": {"type": "string"}},
                "conversation_style": {"type": "string"},
                "experience_level": {"type": "string"},
                "last_updated": {"type": "string"},
                "preferred_attributes": {"type": "array", "items": {"type": "string"}},
                "preferred_entities": {"type": "array", "items": {"type": "string"}},
                "typical_use_cases": {"type": "array", "items": {"type": "string"}},
                "user_id": {"type": "string"}
            }
        },
        "response.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/response.ErrorDetail"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Convmem API",
	Description:      "Per-user conversational memory: history, learned profiles, settings and privacy controls",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
