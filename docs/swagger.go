package docs

import (
	"github.com/swaggo/swag"
)

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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {"post": {"tags": ["Authentication"], "summary": "Register a new account", "responses": {"201": {"description": "Created"}, "409": {"description": "Email already registered"}}}},
        "/auth/login": {"post": {"tags": ["Authentication"], "summary": "Log in with email, password and optional TOTP code", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials or two-factor code required"}, "429": {"description": "Rate limited"}}}},
        "/auth/magic-link": {"post": {"tags": ["Authentication"], "summary": "Email a single-use sign-in link", "responses": {"200": {"description": "OK"}}}},
        "/auth/magic-link/verify": {"post": {"tags": ["Authentication"], "summary": "Exchange a magic link token for an access token", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid or expired token"}}}},
        "/auth/password-reset": {"post": {"tags": ["Authentication"], "summary": "Email a password reset link", "responses": {"200": {"description": "OK"}}}},
        "/auth/password-reset/confirm": {"post": {"tags": ["Authentication"], "summary": "Set a new password with a reset token", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid or expired token"}}}},
        "/users/me": {
            "get": {"tags": ["Users"], "security": [{"BearerAuth": []}], "summary": "Current user", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Users"], "security": [{"BearerAuth": []}], "summary": "Update name or password", "responses": {"200": {"description": "OK"}}}
        },
        "/2fa/setup": {"post": {"tags": ["Users"], "security": [{"BearerAuth": []}], "summary": "Generate a TOTP secret", "responses": {"200": {"description": "OK"}, "409": {"description": "Two-factor already enabled"}}}},
        "/2fa/verify": {"post": {"tags": ["Users"], "security": [{"BearerAuth": []}], "summary": "Confirm the TOTP secret and enable two-factor", "responses": {"200": {"description": "OK"}}}},
        "/2fa/toggle": {"post": {"tags": ["Users"], "security": [{"BearerAuth": []}], "summary": "Enable or disable two-factor", "responses": {"200": {"description": "OK"}}}},
        "/projects": {
            "get": {"tags": ["Projects"], "summary": "List public projects", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Create a draft project", "responses": {"201": {"description": "Created"}, "409": {"description": "Slug taken"}}}
        },
        "/projects/slug/{slug}": {"get": {"tags": ["Projects"], "summary": "Public project by slug", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
        "/projects/mine": {"get": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Projects owned by the current user", "responses": {"200": {"description": "OK"}}}},
        "/projects/suggest-slug": {"get": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Suggest a free slug for a title", "responses": {"200": {"description": "OK"}}}},
        "/projects/{id}": {
            "get": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Get a project", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Edit a draft or rejected project", "responses": {"200": {"description": "OK"}, "403": {"description": "Not editable"}}},
            "delete": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Delete a draft or rejected project", "responses": {"204": {"description": "Deleted"}}}
        },
        "/projects/{id}/submit": {"post": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Submit for review", "responses": {"200": {"description": "OK"}, "409": {"description": "Wrong status"}}}},
        "/projects/{id}/contributions": {"post": {"tags": ["Projects"], "security": [{"BearerAuth": []}], "summary": "Contribute to a financing project", "responses": {"200": {"description": "OK"}, "409": {"description": "Not financing"}}}},
        "/admin/users": {"get": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "List users", "responses": {"200": {"description": "OK"}}}},
        "/admin/users/{id}": {
            "get": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Get a user", "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Activate, deactivate or change admin role", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Delete a user and their projects", "responses": {"204": {"description": "Deleted"}}}
        },
        "/admin/projects": {"get": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "List projects in any status", "responses": {"200": {"description": "OK"}}}},
        "/admin/projects/{id}": {
            "get": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Get a project", "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Edit a project or move it through its lifecycle", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Delete a project", "responses": {"204": {"description": "Deleted"}}}
        },
        "/admin/test-email": {"post": {"tags": ["Admin"], "security": [{"BearerAuth": []}], "summary": "Mail a sample of one template", "responses": {"200": {"description": "OK"}, "503": {"description": "Delivery failed"}}}}
    },
    "definitions": {}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Crowdfund API",
	Description:      "Backend for a crowdfunding platform.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
