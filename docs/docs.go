// Package docs holds the OpenAPI description served at /swagger/.
// Regenerate with `swag init -g cmd/media-service/main.go`.
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
        "/gallery": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["gallery"],
                "summary": "Get the caller's gallery",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/users.Gallery"}},
                    "403": {"description": "unknown_owner", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/gallery/slots": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["gallery"],
                "summary": "Fill a gallery slot",
                "parameters": [
                    {"description": "Slot update", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/users.SlotUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/users.Gallery"}},
                    "400": {"description": "missing_params or invalid_slot", "schema": {"$ref": "#/definitions/response.Response"}},
                    "415": {"description": "unsupported_type", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/health.Status"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/health.Status"}}
                }
            }
        },
        "/media": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "List media",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/media.MediaListResponse"}},
                    "403": {"description": "unknown_owner", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/media/finalize": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Creates the media record for an uploaded image (storageKey) or a ready video (jobId). Repeated calls return the existing record.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Finalize an upload",
                "parameters": [
                    {"description": "Finalization request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/media.FinalizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing record", "schema": {"$ref": "#/definitions/media.FinalizeResponse"}},
                    "201": {"description": "Created record", "schema": {"$ref": "#/definitions/media.FinalizeResponse"}},
                    "400": {"description": "missing_params", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "forbidden or unknown_owner", "schema": {"$ref": "#/definitions/response.Response"}},
                    "409": {"description": "not_ready", "schema": {"$ref": "#/definitions/response.Response"}},
                    "422": {"description": "processing_failed", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/media/uploads/image": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Returns a short-lived credential scoped to one storage key and content type",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Request an image upload credential",
                "parameters": [
                    {"description": "Image upload request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/media.ImageUploadRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/media.ImageUploadResponse"}},
                    "400": {"description": "missing_params", "schema": {"$ref": "#/definitions/response.Response"}},
                    "413": {"description": "file_too_large", "schema": {"$ref": "#/definitions/response.Response"}},
                    "415": {"description": "unsupported_type", "schema": {"$ref": "#/definitions/response.Response"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/response.Response"}},
                    "503": {"description": "storage_unconfigured", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/media/uploads/plan": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Decide between the object storage path and the transcoding path for a MIME type and size",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Get an upload plan",
                "parameters": [
                    {"description": "Upload description", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/media.PlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/media.PlanResponse"}},
                    "413": {"description": "file_too_large", "schema": {"$ref": "#/definitions/response.Response"}},
                    "415": {"description": "unsupported_type", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/media/videos": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Registers a job with the transcoding backend and returns the URL to upload the video to",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Create a video upload job",
                "parameters": [
                    {"description": "Video job request", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/media.VideoJobRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/media.VideoJobResponse"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/response.Response"}},
                    "503": {"description": "transcoding_unconfigured or upstream_unavailable", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/media/videos/{jobId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["media"],
                "summary": "Get video job status",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/media.JobStatusResponse"}},
                    "403": {"description": "forbidden", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "not_found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/webhooks/transcoding": {
            "post": {
                "description": "Receives job status notifications. Deliveries are deduplicated per job and phase; once deduplicated the handler always acknowledges.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Transcoding webhook",
                "parameters": [
                    {"type": "string", "description": "time=<unix>,sig1=<hex hmac-sha256>", "name": "Webhook-Signature", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "unauthorized", "schema": {"$ref": "#/definitions/response.Response"}},
                    "503": {"description": "upstream_unavailable", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/ws/jobs/{jobId}": {
            "get": {
                "description": "Upgrades to a websocket that receives job.status and media.finalized events for the job",
                "tags": ["media"],
                "summary": "Subscribe to job events",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobId", "in": "path", "required": true},
                    {"type": "string", "description": "JWT, for clients that cannot set headers", "name": "token", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "unauthorized", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "forbidden", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "error": {"type": "string"},
                "detail": {"type": "string"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "health.Status": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "database": {"type": "boolean"},
                "topics": {"type": "integer"},
                "subscribers": {"type": "integer"},
                "cache": {"type": "object"}
            }
        },
        "media.PlanRequest": {
            "type": "object",
            "required": ["mimeType"],
            "properties": {
                "mimeType": {"type": "string"},
                "declaredSize": {"type": "integer"},
                "visibility": {"type": "string", "enum": ["PUBLIC", "PREMIUM", "PRIVATE"]}
            }
        },
        "media.PlanResponse": {
            "type": "object",
            "properties": {
                "provider": {"type": "string", "enum": ["object_storage", "transcoding"]},
                "mediaType": {"type": "string", "enum": ["IMAGE", "VIDEO"]},
                "maxBytes": {"type": "integer"}
            }
        },
        "media.ImageUploadRequest": {
            "type": "object",
            "required": ["fileName", "mimeType", "declaredSize"],
            "properties": {
                "fileName": {"type": "string"},
                "mimeType": {"type": "string"},
                "declaredSize": {"type": "integer"},
                "visibility": {"type": "string", "enum": ["PUBLIC", "PREMIUM", "PRIVATE"]},
                "price": {"type": "integer"},
                "description": {"type": "string"},
                "slotIndex": {"type": "integer", "minimum": 0, "maximum": 5}
            }
        },
        "media.ImageUploadResponse": {
            "type": "object",
            "properties": {
                "uploadTarget": {
                    "type": "object",
                    "properties": {
                        "method": {"type": "string"},
                        "url": {"type": "string"},
                        "fields": {"type": "object", "additionalProperties": {"type": "string"}},
                        "headers": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                },
                "storageKey": {"type": "string"},
                "publicUrl": {"type": "string"},
                "expiresInSeconds": {"type": "integer"}
            }
        },
        "media.VideoJobRequest": {
            "type": "object",
            "properties": {
                "fileName": {"type": "string"},
                "mimeType": {"type": "string"},
                "declaredSize": {"type": "integer"},
                "visibility": {"type": "string", "enum": ["PUBLIC", "PREMIUM", "PRIVATE"]},
                "price": {"type": "integer"},
                "description": {"type": "string"},
                "slotIndex": {"type": "integer", "minimum": 0, "maximum": 5}
            }
        },
        "media.VideoJobResponse": {
            "type": "object",
            "properties": {
                "uploadTarget": {"type": "string"},
                "jobId": {"type": "string"}
            }
        },
        "media.JobStatusResponse": {
            "type": "object",
            "properties": {
                "phase": {"type": "string", "enum": ["created", "uploaded", "queued", "processing", "ready", "failed"]},
                "playbackUrl": {"type": "string"},
                "thumbnailUrl": {"type": "string"},
                "errorMessage": {"type": "string"}
            }
        },
        "media.FinalizeRequest": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "storageKey": {"type": "string"},
                "visibility": {"type": "string", "enum": ["PUBLIC", "PREMIUM", "PRIVATE"]},
                "price": {"type": "integer"},
                "description": {"type": "string"},
                "slotIndex": {"type": "integer", "minimum": 0, "maximum": 5}
            }
        },
        "media.FinalizeResponse": {
            "type": "object",
            "properties": {
                "mediaId": {"type": "string"},
                "url": {"type": "string"},
                "thumbUrl": {"type": "string"},
                "alreadyExists": {"type": "boolean"}
            }
        },
        "media.MediaListResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "object"}}
            }
        },
        "users.SlotUpdateRequest": {
            "type": "object",
            "required": ["slotIndex", "publicUrl", "mimeType"],
            "properties": {
                "slotIndex": {"type": "integer", "minimum": 0, "maximum": 5},
                "publicUrl": {"type": "string"},
                "mimeType": {"type": "string"},
                "isPrivate": {"type": "boolean"}
            }
        },
        "users.Gallery": {
            "type": "object",
            "properties": {
                "slots": {"type": "array", "items": {"type": "object"}},
                "preferredTypes": {"type": "array", "items": {"type": "string"}},
                "photosCount": {"type": "integer"},
                "videosCount": {"type": "integer"},
                "hasProfilePhoto": {"type": "boolean"},
                "primaryPhotoUrl": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Media Service API",
	Description:      "Media ingestion, transcoding orchestration and profile galleries.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
