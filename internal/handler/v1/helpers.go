package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data, Message: message})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, mr.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, mr.ErrUnsupportedMediaType):
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: err.Error(), Code: "UNSUPPORTED_MEDIA_TYPE"})

	case errors.Is(err, mr.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error(), Code: "FILE_TOO_LARGE"})

	case errors.Is(err, mr.ErrTooManyFiles),
		errors.Is(err, mr.ErrUnknownField):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "you must be logged in"})

	case errors.Is(err, service.ErrSubmissionInProgress),
		errors.Is(err, service.ErrSessionClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// respondOutcome writes a failed submission. The body carries only the
// outcome's user-facing message, never the underlying cause.
func respondOutcome(c *gin.Context, out *service.Outcome) {
	status := http.StatusInternalServerError
	switch out.Reason {
	case service.ReasonValidation:
		var validErr *service.ValidationError
		if errors.As(out.Err, &validErr) {
			c.JSON(http.StatusBadRequest, ValidationErrorResponse{
				Error:  out.Message,
				Fields: validErr.Fields,
			})
			return
		}
		status = http.StatusBadRequest
	case service.ReasonAuth:
		status = http.StatusUnauthorized
	case service.ReasonUpload, service.ReasonCommit:
		status = http.StatusBadGateway
	case service.ReasonCancelled:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, ErrorResponse{
		Error:   out.Message,
		Code:    string(out.Reason),
		Details: map[string]string{"submission_id": out.SubmissionID},
	})
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}
