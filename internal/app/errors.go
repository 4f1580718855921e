package app

import (
	"fmt"
	"net/http"
)

// DomainError is an error the HTTP layer reports as-is: status, stable code
// and a message safe to show operators.
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

func invalidBody(message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_BODY", message, nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

var (
	errMediaUnavailable = domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage is not configured", nil)
	errVersionsDisabled = domainError(http.StatusServiceUnavailable, "VERSIONS_UNAVAILABLE", "Version history is not configured", nil)
	errVersionNotFound  = domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", nil)
)
