package sheets

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// IsRetryable reports whether a read failure is worth another attempt:
// server errors, rate limiting, per-attempt timeouts and transport errors.
// Auth and not-found responses are permanent.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests
	}
	return true
}
