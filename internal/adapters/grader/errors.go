package grader

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/gradeboard/internal/adapters/repository"
)

var (
	// ErrRejected is returned when the backend answers with success=false.
	ErrRejected = errors.New("grading backend rejected the request")
	// ErrMissingFile is returned for uploads without a CSV.
	ErrMissingFile = errors.New("upload has no file")
)

// APIError is a non-2xx answer from the grading backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d", e.Status)
}

// Unwrap lets callers match a 404 with repository.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return repository.ErrNotFound
	}
	return nil
}
