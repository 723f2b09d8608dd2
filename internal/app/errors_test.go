package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestDomainErrorMessage(t *testing.T) {
	err := domainError(http.StatusConflict, "VERSION_CONFLICT", "stale base", nil)
	if err.Error() != "VERSION_CONFLICT: stale base" {
		t.Fatalf("message = %q", err.Error())
	}
	var nilErr *DomainError
	if nilErr.Error() != "" {
		t.Fatalf("nil message = %q", nilErr.Error())
	}
}

func TestMapErrorTranslations(t *testing.T) {
	details := map[string]any{"currentVersion": int64(3)}
	status, code, _, got := mapError(domainError(http.StatusConflict, "VERSION_CONFLICT", "stale base", details))
	if status != http.StatusConflict || code != "VERSION_CONFLICT" {
		t.Fatalf("status = %d, code = %s", status, code)
	}
	if got.(map[string]any)["currentVersion"].(int64) != 3 {
		t.Fatalf("details = %v", got)
	}

	// Wrapped domain errors keep their mapping.
	wrapped := fmt.Errorf("publish version: %w", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "bad title", nil))
	if status, code, _, _ = mapError(wrapped); status != http.StatusUnprocessableEntity || code != "VALIDATION_ERROR" {
		t.Fatalf("wrapped: status = %d, code = %s", status, code)
	}

	if status, code, _, _ = mapError(sql.ErrNoRows); status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Fatalf("no rows: status = %d, code = %s", status, code)
	}
	if status, code, _, _ = mapError(fmt.Errorf("publish version: %w", sql.ErrNoRows)); status != http.StatusNotFound {
		t.Fatalf("wrapped no rows: status = %d", status)
	}

	if status, code, _, _ = mapError(errors.New("boom")); status != http.StatusInternalServerError || code != "SERVER_ERROR" {
		t.Fatalf("unknown: status = %d, code = %s", status, code)
	}
}
