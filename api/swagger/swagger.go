package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "AgriQuest API",
        "description": "Role-based agricultural education platform: subjects, enrollments, quizzes, notifications",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and password flows"},
        {"name": "Users", "description": "Account management"},
        {"name": "Subjects", "description": "Subject catalogue"},
        {"name": "Invitations", "description": "Admin to teacher subject invitations"},
        {"name": "Enrollments", "description": "Student enrollment workflow"},
        {"name": "Quizzes", "description": "Quiz authoring, taking and grading"},
        {"name": "Results", "description": "Result history, analytics and export"},
        {"name": "Notifications", "description": "Per-user notification inbox"},
        {"name": "Weaknesses", "description": "Learning weakness tracking"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a student account",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Username or email already in use"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by username or email",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials or inactive account"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create a subject (admin)",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/invitations": {
            "post": {
                "tags": ["Invitations"],
                "summary": "Invite a teacher to a subject (admin)",
                "responses": {
                    "201": {"description": "Pending invitation created"},
                    "409": {"description": "A live invitation already exists"}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Request enrollment into a subject (student)",
                "responses": {
                    "201": {"description": "Pending request created"},
                    "409": {"description": "An active enrollment already exists"}
                }
            }
        },
        "/quizzes/{id}/submit": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit answers for grading (student)",
                "responses": {
                    "201": {"description": "Graded result"},
                    "409": {"description": "Already taken or deadline passed"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
