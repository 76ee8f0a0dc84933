// Package auth holds the OpenAPI document served under /swagger/. It is
// generated from the handler annotations with swag init; edit those, not
// this file.
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/tollgate"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {
                "description": "Returns the public keys of every configured signing key, retired ones included.",
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {"description": "The JSON Web Key Set", "schema": {"$ref": "#/definitions/jwtx.JWKS"}}
                }
            }
        },
        "/livez": {
            "get": {
                "description": "Returns 200 while the process is serving, with uptime and version.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Checks the user database, the revocation store and the signing keys.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/v1/auth/register": {
            "post": {
                "description": "Creates a user account and opens its first session.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Register",
                "parameters": [
                    {"description": "username, email, password, optional captcha_token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "access_token, refresh_token, token_type, expires_in", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "409": {"description": "user_exists", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "captcha_required, invalid_captcha, rate_limit_exceeded", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/login": {
            "post": {
                "description": "Verifies username and password and opens a session.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "username, password, optional captcha_token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "access_token, refresh_token, token_type, expires_in", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "invalid_credentials", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "captcha_required, invalid_captcha, rate_limit_exceeded", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/refresh": {
            "post": {
                "description": "Redeems a refresh token for a new token pair. Each refresh token works once.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Refresh",
                "parameters": [
                    {"description": "refresh_token", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/authsdk.RefreshRequest"}},
                    {"type": "string", "description": "access token being replaced", "name": "X-Access-Token", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "access_token, refresh_token, token_type, expires_in", "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "invalid_refresh", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Revokes the bearer access token and the refresh token from the body or cookie. Always returns 200.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Logout",
                "parameters": [
                    {"description": "refresh_token", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/authsdk.RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "status", "schema": {"$ref": "#/definitions/authsdk.StatusResponse"}}
                }
            }
        },
        "/v1/auth/logout-all": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Ends every session of the caller.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Logout everywhere",
                "parameters": [
                    {"description": "revoke_access", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/authsdk.LogoutAllRequest"}}
                ],
                "responses": {
                    "200": {"description": "status", "schema": {"$ref": "#/definitions/authsdk.StatusResponse"}},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "invalid_token", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "500": {"description": "server_error", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the claims of the caller's access token.",
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "sub, roles, device_id, jti, iat, exp", "schema": {"$ref": "#/definitions/authsdk.MeResponse"}},
                    "401": {"description": "invalid_token", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/internal/introspect": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Reports whether an access token is usable right now. Requires a service token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Internal"],
                "summary": "Introspect a user token",
                "parameters": [
                    {"description": "token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.IntrospectRequest"}}
                ],
                "responses": {
                    "200": {"description": "active and, when active, the claims", "schema": {"$ref": "#/definitions/authsdk.IntrospectionResponse"}},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "invalid_token", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "insufficient_role", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/v1/internal/sessions/revoke": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Ends every session of the subject named in the body or the X-User header. Requires a service token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Internal"],
                "summary": "Revoke a user's sessions",
                "parameters": [
                    {"description": "sub, revoke_access", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/authsdk.RevokeSessionsRequest"}},
                    {"type": "string", "description": "subject, when not in the body", "name": "X-User", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "status", "schema": {"$ref": "#/definitions/authsdk.StatusResponse"}},
                    "400": {"description": "invalid_request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "invalid_token", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "403": {"description": "insufficient_role", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.APIError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "refresh_token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_in": {"type": "integer"}
            }
        },
        "authsdk.RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "username"],
            "properties": {
                "username": {"type": "string", "minLength": 3, "maxLength": 50},
                "email": {"type": "string", "maxLength": 100},
                "password": {"type": "string", "minLength": 8, "maxLength": 128},
                "captcha_token": {"type": "string"}
            }
        },
        "authsdk.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "captcha_token": {"type": "string"}
            }
        },
        "authsdk.RefreshRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "authsdk.LogoutAllRequest": {
            "type": "object",
            "properties": {
                "revoke_access": {"type": "boolean"}
            }
        },
        "authsdk.StatusResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        },
        "authsdk.MeResponse": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "device_id": {"type": "string"},
                "jti": {"type": "string"},
                "iat": {"type": "integer"},
                "exp": {"type": "integer"}
            }
        },
        "authsdk.RevokeSessionsRequest": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"},
                "revoke_access": {"type": "boolean"}
            }
        },
        "authsdk.IntrospectRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {
                "token": {"type": "string"}
            }
        },
        "authsdk.IntrospectionResponse": {
            "type": "object",
            "properties": {
                "active": {"type": "boolean"},
                "sub": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "device_id": {"type": "string"},
                "jti": {"type": "string"},
                "token_type": {"type": "string"},
                "iat": {"type": "integer"},
                "exp": {"type": "integer"},
                "iss": {"type": "string"},
                "aud": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"},
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"}
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "redis": {"type": "string"},
                "signer": {"type": "string"}
            }
        },
        "jwtx.JWKS": {
            "type": "object",
            "properties": {
                "keys": {"type": "array", "items": {"$ref": "#/definitions/jwtx.JWK"}}
            }
        },
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "kty": {"type": "string"},
                "kid": {"type": "string"},
                "use": {"type": "string"},
                "alg": {"type": "string"},
                "n": {"type": "string"},
                "e": {"type": "string"},
                "crv": {"type": "string"},
                "x": {"type": "string"},
                "y": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access or service token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "tollgate Authentication Service API",
	Description:      "Issues short-lived access tokens and single-use refresh tokens, and revokes them.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
