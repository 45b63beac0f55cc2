// Package docs holds the swagger document for the llamad HTTP API.
// Regenerate with `make swagger-gen` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/request": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["completion"],
                "summary": "Complete a prompt",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.CompletionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CompletionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/infer": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "tags": ["completion"],
                "summary": "Stream a completion",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.InferRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InferLine"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/sms": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sms"],
                "summary": "Send an SMS",
                "parameters": [
                    {"name": "message", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SMSMessage"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SMSSendResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/sms/receive": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sms"],
                "summary": "Receive an SMS",
                "parameters": [
                    {"name": "message", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SMSMessage"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SMSReceiveResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.SMSReceiveResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.SMSReceiveResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.SMSReceiveResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Session status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "produces": ["application/x-ndjson"],
                "tags": ["ops"],
                "summary": "Follow session events",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.CompletionRequest": {
            "type": "object",
            "properties": {"prompt": {"type": "string", "example": "What is the capital of France?"}}
        },
        "types.CompletionResponse": {
            "type": "object",
            "properties": {"text": {"type": "string", "example": "Paris."}}
        },
        "types.InferRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string"},
                "max_tokens": {"type": "integer", "example": 128},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.9},
                "top_k": {"type": "integer", "example": 40},
                "stop": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer", "example": 42},
                "repeat_penalty": {"type": "number", "example": 1.1}
            }
        },
        "types.InferLine": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "done": {"type": "boolean"},
                "content": {"type": "string"},
                "finish_reason": {"type": "string"},
                "fragments": {"type": "integer"},
                "dropped_messages": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid JSON body"},
                "code": {"type": "integer", "example": 400}
            }
        },
        "types.SMSMessage": {
            "type": "object",
            "properties": {
                "phoneNumber": {"type": "string"},
                "message": {"type": "string"},
                "messageId": {"type": "string"}
            }
        },
        "types.SMSSendResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "Success"}, "message": {"type": "string"}}
        },
        "types.SMSReceiveResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}, "response": {"type": "string"}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "state": {"type": "string"},
                "conversation_mode": {"type": "boolean"},
                "history_len": {"type": "integer"},
                "queue_len": {"type": "integer"},
                "inflight": {"type": "integer"},
                "last_error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "llamad API",
	Description:      "HTTP API for a single local LLM inference session.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
