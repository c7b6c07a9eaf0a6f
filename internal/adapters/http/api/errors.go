package api

import (
	"errors"
	"net/http"

	grader "github.com/okian/gradeboard/internal/adapters/grader"
	queue "github.com/okian/gradeboard/internal/adapters/mq/queue"
	repository "github.com/okian/gradeboard/internal/adapters/repository"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes written in errorResponse.Code.
const (
	codeBadRequest   = "bad_request"
	codeTooLarge     = "payload_too_large"
	codeNotFound     = "not_found"
	codeBackpressure = "backpressure"
	codeUnavailable  = "backend_unavailable"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

// classify maps an error from the service layer to a status and code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidID), errors.Is(err, grader.ErrMissingFile):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull), errors.Is(err, queue.ErrClosed):
		return http.StatusTooManyRequests, codeBackpressure
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, grader.ErrRejected):
		return http.StatusBadGateway, codeUnavailable
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	default:
		var apiErr *grader.APIError
		if errors.As(err, &apiErr) {
			return http.StatusBadGateway, codeUnavailable
		}
		return http.StatusInternalServerError, codeInternal
	}
}
