package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/research-library/internal/llm"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/storage"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "invalid_input", message, nil)
}

// classify maps an operation error to an HTTP status and error code
func classify(err error) (int, string, interface{}) {
	var inputErr *operations.InputError
	var schemaErr *storage.SchemaError
	if upstream, ok := llm.AsUpstreamError(err); ok {
		return http.StatusBadGateway, "upstream_error", gin.H{
			"provider":        upstream.Provider,
			"upstream_status": upstream.StatusCode,
		}
	}
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, "invalid_input", nil
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found", nil
	case llm.IsConfigError(err):
		return http.StatusInternalServerError, "config_error", nil
	case errors.As(err, &schemaErr):
		return http.StatusInternalServerError, "schema_error", gin.H{"table": schemaErr.Table}
	default:
		return http.StatusInternalServerError, "internal_error", nil
	}
}

// RespondWithOperationError sends the error response matching err's type
func RespondWithOperationError(c *gin.Context, err error) {
	status, code, details := classify(err)
	RespondWithError(c, status, code, err.Error(), details)
}
