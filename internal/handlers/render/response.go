package render

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Error codes carried in the error envelope
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeImportNotFound      = "IMPORT_NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeCatalogUnavailable  = "CATALOG_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorBody describes what went wrong
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the envelope of every failed request
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// DataResponse wraps a single payload
type DataResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Error aborts the request with the error envelope
func Error(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: Now(),
	})
}

// Data writes payload in the success envelope
func Data(c *gin.Context, status int, payload any) {
	c.JSON(status, DataResponse{
		Success:   true,
		Data:      payload,
		Timestamp: Now(),
	})
}

// Unauthorized is shorthand for a 401
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// Now is the envelope timestamp, in UTC
func Now() time.Time {
	return time.Now().UTC()
}
