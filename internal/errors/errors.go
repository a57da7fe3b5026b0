package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

type statusDefault struct {
	code    string
	message string
}

var defaults = map[int]statusDefault{
	http.StatusBadRequest:          {ErrCodeInvalidInput, "Invalid request"},
	http.StatusUnauthorized:        {ErrCodeUnauthorized, "Authentication required"},
	http.StatusForbidden:           {ErrCodeForbidden, "Access denied"},
	http.StatusNotFound:            {ErrCodeNotFound, "Resource not found"},
	http.StatusInternalServerError: {ErrCodeInternalError, "Internal server error"},
}

// abort writes the envelope for status and stops the handler chain. An empty
// message falls back to the status default.
func abort(c *gin.Context, status int, message string) {
	d := defaults[status]
	if message == "" {
		message = d.message
	}
	c.AbortWithStatusJSON(status, &APIError{Code: d.code, Message: message})
}

func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, message)
}

func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message)
}

// InvalidBody sends a 400 response describing why binding the request failed
func InvalidBody(c *gin.Context, err error) {
	BadRequest(c, ValidationMessage(err))
}

// InternalError sends a 500 response. Callers pass "" so internals never leak.
func InternalError(c *gin.Context, message string) {
	abort(c, http.StatusInternalServerError, message)
}
