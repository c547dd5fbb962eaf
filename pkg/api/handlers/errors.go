package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dealerreach/backend/pkg/domain"
)

// httpError translates a domain error into an echo HTTP error.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch domain.GetErrorCode(err) {
	case domain.ErrCodeNotFound:
		status = http.StatusNotFound
	case domain.ErrCodeValidation:
		status = http.StatusBadRequest
	case domain.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case domain.ErrCodeConflict:
		status = http.StatusConflict
	}
	return echo.NewHTTPError(status, map[string]string{
		"error": err.Error(),
	})
}
