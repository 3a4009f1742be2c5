package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Staff Appeal API",
        "description": "Evaluation appeal workflow for staff performance reviews",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Appeals",
            "description": "Evaluation appeal submission and review"
        }
    ],
    "paths": {
        "/appeals/submit": {
            "post": {
                "tags": [
                    "Appeals"
                ],
                "summary": "File a new evaluation appeal",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad request",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitAppealRequest"
                        }
                    }
                ]
            },
            "put": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Add information or evidence to an open appeal",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad request",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid status",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AdditionalInfoRequest"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Withdraw an open appeal",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid status",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/WithdrawAppealRequest"
                        }
                    }
                ]
            }
        },
        "/appeals/submit/remote": {
            "post": {
                "tags": [
                    "Appeals"
                ],
                "summary": "File an appeal through the evaluation system",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad request",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Draft key belongs to another employee",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Rejected by the evaluation system",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "502": {
                        "description": "Remote submission failed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "X-Draft-Key",
                        "in": "header",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitAppealRequest"
                        }
                    }
                ]
            }
        },
        "/appeals/drafts/{key}": {
            "get": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Inspect a pending cross-system submission draft",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "key",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/appeals/status/{id}": {
            "get": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Get an appeal and its current status",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            },
            "put": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Move an appeal through the review lifecycle",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad request",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid status",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateStatusRequest"
                        }
                    }
                ]
            },
            "post": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Append a message to the appeal communication log",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AddCommentRequest"
                        }
                    }
                ]
            }
        },
        "/appeals/status/{id}/audit": {
            "get": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Export the audit trail of an appeal",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "json",
                            "csv",
                            "pdf"
                        ]
                    }
                ]
            }
        },
        "/appeals/employees/{employeeId}": {
            "get": {
                "tags": [
                    "Appeals"
                ],
                "summary": "List every appeal filed by an employee",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "employeeId",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/appeals/check-eligibility": {
            "post": {
                "tags": [
                    "Appeals"
                ],
                "summary": "Check whether an evaluation period accepts appeals",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Bad request",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EligibilityRequest"
                        }
                    }
                ]
            }
        }
    },
    "definitions": {
        "EvidenceDocumentInput": {
            "type": "object",
            "required": [
                "fileName",
                "mimeType",
                "reference"
            ],
            "properties": {
                "fileName": {
                    "type": "string"
                },
                "mimeType": {
                    "type": "string"
                },
                "sizeBytes": {
                    "type": "integer"
                },
                "reference": {
                    "type": "string"
                }
            }
        },
        "SubmitAppealRequest": {
            "type": "object",
            "required": [
                "employeeName",
                "evaluationPeriod",
                "appealCategory",
                "appealReason"
            ],
            "properties": {
                "employeeId": {
                    "type": "string"
                },
                "employeeName": {
                    "type": "string"
                },
                "departmentId": {
                    "type": "string"
                },
                "jobCategory": {
                    "type": "string"
                },
                "evaluationPeriod": {
                    "type": "string"
                },
                "appealCategory": {
                    "type": "string",
                    "enum": [
                        "criteria_misinterpretation",
                        "achievement_oversight",
                        "period_error",
                        "calculation_error",
                        "other"
                    ]
                },
                "appealReason": {
                    "type": "string",
                    "minLength": 100
                },
                "originalScore": {
                    "type": "number"
                },
                "requestedScore": {
                    "type": "number"
                },
                "evidenceDocuments": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/EvidenceDocumentInput"
                    }
                },
                "submittedVia": {
                    "type": "string",
                    "enum": [
                        "web",
                        "mobile",
                        "cross_system",
                        "operator"
                    ]
                }
            }
        },
        "AdditionalInfoRequest": {
            "type": "object",
            "required": [
                "appealId"
            ],
            "properties": {
                "appealId": {
                    "type": "string"
                },
                "additionalInfo": {
                    "type": "string"
                },
                "appealReason": {
                    "type": "string"
                },
                "evidenceDocuments": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/EvidenceDocumentInput"
                    }
                }
            }
        },
        "WithdrawAppealRequest": {
            "type": "object",
            "required": [
                "appealId"
            ],
            "properties": {
                "appealId": {
                    "type": "string"
                },
                "comments": {
                    "type": "string"
                }
            }
        },
        "DecisionInput": {
            "type": "object",
            "required": [
                "outcome",
                "reason"
            ],
            "properties": {
                "outcome": {
                    "type": "string",
                    "enum": [
                        "approved",
                        "partially_approved",
                        "rejected"
                    ]
                },
                "reason": {
                    "type": "string"
                },
                "adjustedScore": {
                    "type": "number"
                }
            }
        },
        "UpdateStatusRequest": {
            "type": "object",
            "required": [
                "status"
            ],
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "under_review",
                        "additional_info_requested",
                        "resolved",
                        "rejected",
                        "withdrawn"
                    ]
                },
                "reviewerId": {
                    "type": "string"
                },
                "comments": {
                    "type": "string"
                },
                "decision": {
                    "$ref": "#/definitions/DecisionInput"
                }
            }
        },
        "AddCommentRequest": {
            "type": "object",
            "required": [
                "message"
            ],
            "properties": {
                "message": {
                    "type": "string"
                },
                "to": {
                    "type": "string"
                },
                "attachments": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "EligibilityRequest": {
            "type": "object",
            "required": [
                "evaluationPeriod"
            ],
            "properties": {
                "evaluationPeriod": {
                    "type": "string"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "details": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
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
