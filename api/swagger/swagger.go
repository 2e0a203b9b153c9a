package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Chroma Agent API",
        "description": "Machine-to-machine authorization, audit and write-safety surface for the Chroma CMS",
        "version": "1.0.0"
    },
    "basePath": "/agent/v1",
    "schemes": [
        "https"
    ],
    "securityDefinitions": {
        "APIKeyHeader": {"type": "apiKey", "name": "X-API-Key", "in": "header"},
        "BearerToken": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "keys", "description": "API key lifecycle"},
        {"name": "theme", "description": "Theme options and theme mods"},
        {"name": "seo", "description": "SEO options and per-post SEO meta"},
        {"name": "content", "description": "Posts and pages"},
        {"name": "media", "description": "Media uploads"},
        {"name": "audit", "description": "Audit log, snapshots and rollback"},
        {"name": "discovery", "description": "Self-description for agents"}
    ],
    "paths": {
        "/keys": {
            "get": {
                "tags": ["keys"],
                "summary": "List API keys",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "active", "revoked"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["keys"],
                "summary": "Create an API key (token returned once)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateKeyRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/keys/{id}": {
            "get": {
                "tags": ["keys"],
                "summary": "Fetch one API key",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "patch": {
                "tags": ["keys"],
                "summary": "Update key label, scopes, rate limit, allowed IPs or expiry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateKeyRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/keys/{id}/revoke": {
            "post": {
                "tags": ["keys"],
                "summary": "Revoke an API key",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "Revoked"}}
            }
        },
        "/keys/{id}/rotate": {
            "post": {
                "tags": ["keys"],
                "summary": "Rotate the key secret (new token returned once)",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/theme/options": {
            "get": {
                "tags": ["theme"],
                "summary": "Read allowlisted theme options",
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["theme"],
                "summary": "Update theme options (dry_run supported)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSettingsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/theme/mods": {
            "get": {
                "tags": ["theme"],
                "summary": "Read allowlisted theme mods",
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["theme"],
                "summary": "Update theme mods (dry_run supported)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSettingsRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/seo/options": {
            "get": {
                "tags": ["seo"],
                "summary": "Read allowlisted SEO options",
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["seo"],
                "summary": "Update SEO options (dry_run supported)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSettingsRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/seo/meta/{id}": {
            "get": {
                "tags": ["seo"],
                "summary": "Read the SEO meta of one post",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["seo"],
                "summary": "Update the SEO meta of one post (null deletes a key)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSEOMetaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Strict write verification failed"}
                }
            }
        },
        "/seo/schema": {
            "get": {
                "tags": ["seo"],
                "summary": "List posts with structured-data markup",
                "parameters": [
                    {"name": "post_type", "in": "query", "type": "string", "enum": ["post", "page"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "needs_review", "in": "query", "type": "boolean"},
                    {"name": "include_data", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/seo/schema/{id}": {
            "get": {
                "tags": ["seo"],
                "summary": "Read the schema meta of one post",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["seo"],
                "summary": "Update the schema meta of one post (null deletes a key)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSchemaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Strict write verification failed"}
                }
            }
        },
        "/content": {
            "get": {
                "tags": ["content"],
                "summary": "List posts and pages",
                "parameters": [
                    {"name": "post_type", "in": "query", "type": "string", "enum": ["post", "page"]},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["content"],
                "summary": "Create a post or page (dry_run supported)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePostRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Write policy blocked"}
                }
            }
        },
        "/content/{id}": {
            "get": {
                "tags": ["content"],
                "summary": "Fetch one post or page",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "patch": {
                "tags": ["content"],
                "summary": "Update a post or page (dry_run and strict_write supported)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePostRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Strict write verification failed"}
                }
            },
            "put": {
                "tags": ["content"],
                "summary": "Update a post or page (alias for PATCH)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePostRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["content"],
                "summary": "Trash a post, or delete permanently with force=true",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "force", "in": "query", "type": "boolean"},
                    {"name": "dry_run", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/media": {
            "get": {"tags": ["media"], "summary": "List media", "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["media"],
                "summary": "Upload a media file",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "required": true, "type": "file"}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/media/attach": {
            "post": {
                "tags": ["media"],
                "summary": "Attach a media item to a post",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttachMediaRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/media/{id}": {
            "get": {"tags": ["media"], "summary": "Fetch one media record", "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["media"], "summary": "Patch media metadata", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["media"], "summary": "Remove a media record and file", "responses": {"200": {"description": "OK"}}}
        },
        "/audit": {
            "get": {
                "tags": ["audit"],
                "summary": "List audit log entries",
                "parameters": [
                    {"name": "key_id", "in": "query", "type": "integer"},
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "route", "in": "query", "type": "string"},
                    {"name": "target_type", "in": "query", "type": "string"},
                    {"name": "target_id", "in": "query", "type": "string"},
                    {"name": "since", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "until", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/audit/{id}": {
            "get": {
                "tags": ["audit"],
                "summary": "Fetch one audit entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/audit/export": {
            "get": {
                "tags": ["audit"],
                "summary": "Export the audit log as CSV or PDF",
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "produces": ["text/csv", "application/pdf"],
                "responses": {"200": {"description": "File download"}}
            }
        },
        "/snapshots": {
            "get": {
                "tags": ["audit"],
                "summary": "List option and theme-mod snapshots",
                "parameters": [
                    {"name": "target_type", "in": "query", "type": "string", "enum": ["option", "theme_mod"]},
                    {"name": "target_key", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/snapshots/{id}": {
            "get": {
                "tags": ["audit"],
                "summary": "Fetch one snapshot",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rollback/snapshot": {
            "post": {
                "tags": ["audit"],
                "summary": "Restore a setting to a snapshot's previous value",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RollbackRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/discovery": {
            "get": {"tags": ["discovery"], "summary": "Describe the API surface", "responses": {"200": {"description": "OK"}}}
        },
        "/resources": {
            "get": {"tags": ["discovery"], "summary": "List writable resource types", "responses": {"200": {"description": "OK"}}}
        },
        "/write-policy": {
            "get": {
                "tags": ["discovery"],
                "summary": "Expose allowlists and the content meta policy",
                "parameters": [{"name": "meta_key", "in": "query", "type": "string", "description": "check one meta key against the policy"}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "CreateKeyRequest": {
            "type": "object",
            "required": ["label", "scopes"],
            "properties": {
                "label": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "string"}},
                "rate_limit": {"type": "integer"},
                "allowed_ips": {"type": "array", "items": {"type": "string"}},
                "expires_in": {"type": "integer", "description": "days until expiry"},
                "created_by": {"type": "string"}
            }
        },
        "UpdateKeyRequest": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "string"}},
                "rate_limit": {"type": "integer"},
                "allowed_ips": {"type": "array", "items": {"type": "string"}},
                "expires_in": {"type": "integer"}
            }
        },
        "UpdateSettingsRequest": {
            "type": "object",
            "required": ["values"],
            "properties": {
                "values": {"type": "object"},
                "dry_run": {"type": "boolean"}
            }
        },
        "UpdateSEOMetaRequest": {
            "type": "object",
            "required": ["meta"],
            "properties": {
                "meta": {"type": "object"},
                "dry_run": {"type": "boolean"}
            }
        },
        "UpdateSchemaRequest": {
            "type": "object",
            "required": ["values"],
            "properties": {
                "values": {"type": "object"},
                "strict_write": {"type": "boolean"},
                "dry_run": {"type": "boolean"}
            }
        },
        "AttachMediaRequest": {
            "type": "object",
            "required": ["media_id", "post_id"],
            "properties": {
                "media_id": {"type": "integer"},
                "post_id": {"type": "integer"},
                "dry_run": {"type": "boolean"}
            }
        },
        "CreatePostRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "excerpt": {"type": "string"},
                "slug": {"type": "string"},
                "status": {"type": "string"},
                "meta": {"type": "object"},
                "taxonomies": {"type": "object"},
                "strict_write": {"type": "boolean"},
                "dry_run": {"type": "boolean"}
            }
        },
        "UpdatePostRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "excerpt": {"type": "string"},
                "slug": {"type": "string"},
                "status": {"type": "string"},
                "meta": {"type": "object"},
                "taxonomies": {"type": "object"},
                "strict_write": {"type": "boolean"},
                "dry_run": {"type": "boolean"}
            }
        },
        "RollbackRequest": {
            "type": "object",
            "required": ["snapshot_id"],
            "properties": {
                "snapshot_id": {"type": "integer"},
                "dry_run": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "dry_run": {"type": "boolean"},
                "data": {"type": "object"},
                "diff": {"type": "object"},
                "blocked_keys": {"type": "array", "items": {"type": "string"}},
                "snapshot_ids": {"type": "array", "items": {"type": "integer"}},
                "warning": {"type": "string"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "error": {"$ref": "#/definitions/APIError"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
