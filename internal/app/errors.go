package app

import "fmt"

// DomainError is a page-domain failure with its HTTP mapping attached: the
// handler writes Status and the {code, error, details} body directly from it.
// The service layer raises VERSION_CONFLICT (stale publish base, Details
// carries the current head), VALIDATION_ERROR, INVALID_RANGE and
// ARCHIVE_DISABLED; transport-level codes stay in the handler.
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
