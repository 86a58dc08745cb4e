//go:build swagger

package httpapi

import "github.com/swaggo/swag"

// apiDoc is registered with swag so http-swagger can serve /swagger/doc.json
// without a generated docs package.
var apiDoc = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "hypnosd API",
	Description:      "Stateless chat gateway in front of a single local llama.cpp engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(apiDoc.InstanceName(), apiDoc)
}

const docTemplate = `{
  "swagger": "2.0",
  "info": {"title": "{{.Title}}", "description": "{{.Description}}", "version": "{{.Version}}"},
  "basePath": "{{.BasePath}}",
  "securityDefinitions": {
    "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
  },
  "paths": {
    "/health": {"get": {"summary": "Liveness and model state", "produces": ["application/json"],
      "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}}}}},
    "/readyz": {"get": {"summary": "Readiness probe", "produces": ["text/plain"],
      "responses": {"200": {"description": "ready"}, "503": {"description": "loading"}}}},
    "/chat": {"post": {"summary": "Generate the next model turn", "security": [{"BearerAuth": []}],
      "consumes": ["application/json"], "produces": ["application/json"],
      "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ChatRequest"}}],
      "responses": {
        "200": {"description": "OK", "headers": {"X-Dropped-Turns": {"type": "integer"}}, "schema": {"$ref": "#/definitions/ChatResponse"}},
        "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
        "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
        "415": {"description": "Unsupported media type", "schema": {"$ref": "#/definitions/ErrorResponse"}},
        "500": {"description": "Generation failed", "schema": {"$ref": "#/definitions/ErrorResponse"}},
        "503": {"description": "Model not initialized", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
    "/reset": {"post": {"summary": "Fresh history with the persona", "security": [{"BearerAuth": []}], "produces": ["application/json"],
      "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResetResponse"}},
        "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
    "/process_image": {"post": {"summary": "Image processing placeholder", "security": [{"BearerAuth": []}], "produces": ["application/json"],
      "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ImageResponse"}},
        "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
        "503": {"description": "Model not initialized", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}}
  },
  "definitions": {
    "Message": {"type": "object", "required": ["role"], "properties": {
      "role": {"type": "string", "enum": ["system", "user", "model"]}, "content": {"type": "string"}}},
    "ChatRequest": {"type": "object", "required": ["message"], "properties": {
      "message": {"type": "string"}, "history": {"type": "array", "items": {"$ref": "#/definitions/Message"}}}},
    "ChatResponse": {"type": "object", "properties": {
      "response": {"type": "string"}, "history": {"type": "array", "items": {"$ref": "#/definitions/Message"}},
      "tokens_used": {"type": "integer"}}},
    "ResetResponse": {"type": "object", "properties": {
      "message": {"type": "string"}, "history": {"type": "array", "items": {"$ref": "#/definitions/Message"}}}},
    "HealthResponse": {"type": "object", "properties": {
      "status": {"type": "string"}, "text_model_loaded": {"type": "boolean"}, "timestamp": {"type": "number"}}},
    "ImageResponse": {"type": "object", "properties": {
      "message": {"type": "string"}, "implemented": {"type": "boolean"}}},
    "ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}}}
  }
}`
