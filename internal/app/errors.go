package app

import (
	"errors"
	"fmt"
	"net/http"

	"portal/api/internal/auth"
	"portal/api/internal/catalog"
	"portal/api/internal/directory"
	"portal/api/internal/export"
	"portal/api/internal/objects"
	"portal/api/internal/portal"
	"portal/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var errSessionExpired = domainError(http.StatusUnauthorized, "SESSION_EXPIRED", "Session expired, please sign in again", nil)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, portal.ErrNotAuthenticated):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, portal.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, directory.ErrUserNotFound), errors.Is(err, store.ErrIntegrationNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil
	case errors.Is(err, portal.ErrNotDocumentTab):
		return http.StatusConflict, "NOT_DOCUMENT_TAB", err.Error(), nil
	case errors.Is(err, portal.ErrInvalidInput),
		errors.Is(err, catalog.ErrUnknownSubService),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidPriority),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, objects.ErrNoObjectKey):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
