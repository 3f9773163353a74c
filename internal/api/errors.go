package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"problem-radar/internal/config"
	"problem-radar/internal/store"
)

type apiError struct {
	Status int
	Code   string
	Err    error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *apiError) Unwrap() error { return e.Err }

func newAPIError(status int, code string, err error) *apiError {
	return &apiError{Status: status, Code: code, Err: err}
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
	case errors.Is(err, store.ErrNotFound):
		ae = newAPIError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, config.ErrMissingSecret):
		ae = newAPIError(http.StatusInternalServerError, "missing_secret", err)
	default:
		ae = newAPIError(http.StatusInternalServerError, "internal", err)
	}

	if ae.Status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.FullPath(), "code", ae.Code, "error", ae.Err)
	}
	c.AbortWithStatusJSON(ae.Status, gin.H{
		"success": false,
		"error":   ae.Error(),
		"code":    ae.Code,
	})
}

func (h *Handler) failValidation(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"code":    "invalid_body",
			"details": []fieldError{{Field: "body", Message: err.Error()}},
		})
		return
	}

	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Validation failed",
		"code":    "validation_failed",
		"details": details,
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", fe.Field())
	case "subreddit":
		return fmt.Sprintf("%s must be 2-21 letters, digits or underscores", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
