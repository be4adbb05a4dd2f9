package api

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"adminka/internal/admin"
	"adminka/internal/dashboard"
	"adminka/internal/store"
)

// statusFor переводит класс ошибки в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, admin.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, admin.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, admin.ErrInvalidArgument), errors.Is(err, admin.ErrNoValue):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// statusForErrors: 409, если есть конфликтные ошибки (unique/ref).
func statusForErrors(errs []store.FieldError) int {
	for _, e := range errs {
		if e.Code == store.CodeUniqueViolation || e.Code == store.CodeRefNotFound {
			return http.StatusConflict
		}
	}
	return http.StatusBadRequest
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *store.ValidationError
	if errors.As(err, &verr) {
		c.JSON(statusForErrors(verr.Errors), gin.H{"errors": verr.Errors})
		return
	}
	var lerr *dashboard.LintError
	if errors.As(err, &lerr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "schema has blocking issues",
			"issues": lerr.Issues,
			"hint":   "fix DSL and retry",
		})
		return
	}
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
