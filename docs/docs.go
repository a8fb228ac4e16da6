// Package docs registers the OpenAPI document served at /swagger.
// Keep it in step with the handler annotations.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [
        {"url": "http://{{.Host}}{{.BasePath}}"}
    ],
    "paths": {
        "/creditos/integrar-credito-constituido": {
            "post": {
                "operationId": "integrateCredits",
                "summary": "Integrate constituted credits",
                "description": "Validates every credit and publishes them in order to the ingestion topic",
                "tags": ["creditos"],
                "requestBody": {
                    "required": true,
                    "description": "Credits to integrate",
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "array",
                                "minItems": 1,
                                "items": {"$ref": "#/components/schemas/handler.IntegrateCreditRequest"}
                            }
                        }
                    }
                },
                "responses": {
                    "202": {"description": "Accepted", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/IntegrateResponse"}}}},
                    "400": {"description": "Bad Request", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/dto.Response"}}}},
                    "413": {"description": "Request Entity Too Large", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/dto.Response"}}}},
                    "502": {"description": "Bad Gateway", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/IntegrateResponse"}}}}
                }
            }
        },
        "/creditos/{numeroNfse}": {
            "get": {
                "operationId": "listCreditsByInvoice",
                "summary": "List credits of an invoice",
                "tags": ["creditos"],
                "parameters": [
                    {"name": "numeroNfse", "in": "path", "required": true, "description": "Invoice number", "schema": {"type": "string"}}
                ],
                "responses": {
                    "200": {"description": "OK", "content": {"application/json": {"schema": {
                        "allOf": [
                            {"$ref": "#/components/schemas/dto.Response"},
                            {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/components/schemas/credit.CreditResponse"}}}}
                        ]
                    }}}},
                    "500": {"description": "Internal Server Error", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/dto.Response"}}}}
                }
            }
        },
        "/creditos/credito/{numeroCredito}": {
            "get": {
                "operationId": "getCreditByNumber",
                "summary": "Get a credit by its number",
                "tags": ["creditos"],
                "parameters": [
                    {"name": "numeroCredito", "in": "path", "required": true, "description": "Credit number", "schema": {"type": "string"}}
                ],
                "responses": {
                    "200": {"description": "OK", "content": {"application/json": {"schema": {
                        "allOf": [
                            {"$ref": "#/components/schemas/dto.Response"},
                            {"type": "object", "properties": {"data": {"$ref": "#/components/schemas/credit.CreditResponse"}}}
                        ]
                    }}}},
                    "404": {"description": "Not Found", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/dto.Response"}}}}
                }
            }
        },
        "/self": {
            "get": {
                "operationId": "self",
                "summary": "Liveness check",
                "tags": ["system"],
                "servers": [{"url": "http://{{.Host}}"}],
                "responses": {
                    "200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/handler.HealthStatus"}}}}
                }
            }
        },
        "/ready": {
            "get": {
                "operationId": "ready",
                "summary": "Readiness check",
                "tags": ["system"],
                "servers": [{"url": "http://{{.Host}}"}],
                "responses": {
                    "200": {"description": "OK", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/handler.HealthStatus"}}}},
                    "503": {"description": "Service Unavailable", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/handler.HealthStatus"}}}}
                }
            }
        }
    },
    "components": {
        "schemas": {
            "handler.IntegrateCreditRequest": {
                "type": "object",
                "required": ["NumeroCredito", "NumeroNfse", "TipoCredito", "SimplesNacional"],
                "properties": {
                    "NumeroCredito": {"type": "string", "maxLength": 50, "example": "123456"},
                    "NumeroNfse": {"type": "string", "maxLength": 50, "example": "7891011"},
                    "DataConstituicao": {"type": "string", "format": "date-time", "example": "2024-02-25T00:00:00"},
                    "ValorIssqn": {"type": "number", "example": 1500.75},
                    "TipoCredito": {"type": "string", "maxLength": 50, "example": "ISSQN"},
                    "SimplesNacional": {"type": "string", "description": "Sim/Não, yes/no, true/false, 1/0 in any case", "example": "Sim"},
                    "Aliquota": {"type": "number", "example": 5.0},
                    "ValorFaturado": {"type": "number", "example": 30000.00},
                    "ValorDeducao": {"type": "number", "example": 5000.00},
                    "BaseCalculo": {"type": "number", "example": 25000.00}
                }
            },
            "credit.CreditResponse": {
                "type": "object",
                "properties": {
                    "numeroCredito": {"type": "string"},
                    "numeroNfse": {"type": "string"},
                    "dataConstituicao": {"type": "string", "format": "date-time"},
                    "valorIssqn": {"type": "string", "example": "1500.75"},
                    "tipoCredito": {"type": "string"},
                    "simplesNacional": {"type": "string", "enum": ["Sim", "Não"]},
                    "aliquota": {"type": "string", "example": "5"},
                    "valorFaturado": {"type": "string", "example": "30000"},
                    "valorDeducao": {"type": "string", "example": "5000"},
                    "baseCalculo": {"type": "string", "example": "25000"}
                }
            },
            "dto.IntegrateResult": {
                "type": "object",
                "properties": {
                    "published": {"type": "integer", "example": 2}
                }
            },
            "IntegrateResponse": {
                "allOf": [
                    {"$ref": "#/components/schemas/dto.Response"},
                    {"type": "object", "properties": {"data": {"$ref": "#/components/schemas/dto.IntegrateResult"}}}
                ]
            },
            "dto.ValidationDetail": {
                "type": "object",
                "properties": {
                    "field": {"type": "string", "example": "[1].SimplesNacional"},
                    "message": {"type": "string"}
                }
            },
            "dto.ErrorInfo": {
                "type": "object",
                "properties": {
                    "code": {"type": "string", "example": "ERR_VALIDATION"},
                    "message": {"type": "string"},
                    "request_id": {"type": "string"},
                    "timestamp": {"type": "string", "format": "date-time"},
                    "details": {"type": "array", "items": {"$ref": "#/components/schemas/dto.ValidationDetail"}}
                }
            },
            "dto.Response": {
                "type": "object",
                "properties": {
                    "success": {"type": "boolean"},
                    "data": {},
                    "error": {"$ref": "#/components/schemas/dto.ErrorInfo"}
                }
            },
            "handler.HealthStatus": {
                "type": "object",
                "properties": {
                    "status": {"type": "string", "example": "ok"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Credit Ingestion API",
	Description:      "Publishes constituted tax credits to the ingestion topic and reads persisted credits back",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
