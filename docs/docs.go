package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "description": "Asynchronous TCP connect scanning with banner capture.",
    "title": "portscan API",
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "1.0"
  },
  "basePath": "/api/v1",
  "schemes": [
    "http"
  ],
  "securityDefinitions": {
    "ApiKeyAuth": {
      "type": "apiKey",
      "in": "header",
      "name": "Authorization",
      "description": "Bearer <API_KEY>"
    }
  },
  "paths": {
    "/scans": {
      "post": {
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "summary": "Create a new scan task",
        "description": "Validates the port expression, persists the task and queues it for background workers. Poll GET /scans/{id} for the outcome.",
        "operationId": "createScan",
        "tags": ["Scans"],
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {
            "description": "Scan request parameters",
            "name": "scanRequest",
            "in": "body",
            "required": true,
            "schema": {"$ref": "#/definitions/CreateScanRequest"}
          }
        ],
        "responses": {
          "202": {"description": "Scan accepted", "schema": {"$ref": "#/definitions/ScanAcceptedResponse"}},
          "400": {"description": "Invalid payload or port expression", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/scans/{id}": {
      "get": {
        "produces": ["application/json"],
        "summary": "Get scan status and results",
        "description": "Returns the task snapshot. results holds one entry per port once status is completed.",
        "operationId": "getScan",
        "tags": ["Scans"],
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {
            "type": "string",
            "description": "Scan Task ID (UUID v4)",
            "name": "id",
            "in": "path",
            "required": true
          }
        ],
        "responses": {
          "200": {"description": "Task snapshot", "schema": {"$ref": "#/definitions/ScanTask"}},
          "400": {"description": "Malformed task id", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    }
  },
  "definitions": {
    "CreateScanRequest": {
      "type": "object",
      "required": ["host"],
      "properties": {
        "host": {"type": "string", "example": "192.0.2.10"},
        "ports": {"type": "string", "example": "80,443,8080", "description": "Comma list or a single start-end range. Defaults to 1-1024."},
        "timeout_ms": {"type": "integer", "minimum": 1, "maximum": 60000, "example": 1000},
        "concurrency": {"type": "integer", "minimum": 1, "maximum": 1000, "example": 100}
      }
    },
    "ScanAcceptedResponse": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid"},
        "status": {"type": "string", "enum": ["pending"]}
      }
    },
    "ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {"type": "string", "example": "task not found"}
      }
    },
    "Outcome": {
      "type": "object",
      "properties": {
        "port": {"type": "integer", "example": 22},
        "status": {"type": "string", "enum": ["Open", "Closed", "Error"]},
        "banner": {"type": "string", "example": "SSH-2.0-OpenSSH_9.6"},
        "banner_b64": {"type": "string", "format": "byte", "description": "Banner as base64 when it is not valid UTF-8"},
        "cause": {"type": "string", "example": "timeout"}
      }
    },
    "Counts": {
      "type": "object",
      "properties": {
        "open": {"type": "integer"},
        "closed": {"type": "integer"},
        "error": {"type": "integer"}
      }
    },
    "ScanTask": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid"},
        "status": {"type": "string", "enum": ["pending", "running", "completed", "failed"]},
        "host": {"type": "string"},
        "ports": {"type": "string"},
        "timeout_ms": {"type": "integer"},
        "concurrency": {"type": "integer"},
        "results": {"type": "array", "items": {"$ref": "#/definitions/Outcome"}},
        "counts": {"$ref": "#/definitions/Counts"},
        "created_at": {"type": "string", "format": "date-time"},
        "completed_at": {"type": "string", "format": "date-time"},
        "error": {"type": "string"}
      }
    }
  }
}
`

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

type swaggerDoc struct{}

func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}
