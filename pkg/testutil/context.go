package testutil

import (
	"net/http"
	"time"

	"cvl/pkg/domain"
	"cvl/pkg/requestcontext"
)

// WithPrincipal adds an acting principal to the request context, simulating
// what the auth layer in front of this service would do.
func WithPrincipal(req *http.Request, username string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), domain.Principal{Username: username})
	return req.WithContext(ctx)
}

// WithTime pins the request-scoped clock, so date-driven handlers are
// deterministic under test.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// Date builds a midnight-UTC date, the granularity all licence date logic uses.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
