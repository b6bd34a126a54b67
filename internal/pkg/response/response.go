// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"net/http"

	"authserver/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

const CodeValidation = "VALIDATION_ERROR"

// Envelope is the body of every API response. Exactly one of Data and Error
// is set.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details []validator.FieldError `json:"details,omitempty"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Envelope{Success: true, Data: data})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// ValidationError reports a 400 with one entry per rejected field.
func ValidationError(c *gin.Context, details []validator.FieldError) {
	c.JSON(http.StatusBadRequest, Envelope{Error: &ErrorBody{
		Code:    CodeValidation,
		Message: "Validation error",
		Details: details,
	}})
}
