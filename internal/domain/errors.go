package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Markers classify failures across the feed, ingestion, moderation and
// migration paths. Callers test for them with errors.Is.
var (
	ErrNetwork            = errors.New("network error")
	ErrBadStatus          = errors.New("unsuccessful http status")
	ErrDeserialize        = errors.New("deserialize error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrTooLarge           = errors.New("payload too large")
	ErrDuplicate          = errors.New("duplicate content")
	ErrAlreadyExists      = errors.New("blob already exists")
	ErrStorageIO          = errors.New("storage io error")
	ErrPersistence        = errors.New("persistence error")
)

// Wrap tags err with marker and an operation description, keeping both
// reachable through errors.Is.
func Wrap(marker error, operation string, err error) error {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "operation failed"
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, operation, err)
	}
	return fmt.Errorf("%w: %s", marker, operation)
}

// StatusError records a non-success HTTP status from an upstream.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Is lets errors.Is(err, ErrBadStatus) match, and 404s also match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrBadStatus:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	default:
		return false
	}
}
