package testutil

import (
	"context"
	"net/http"
	"time"

	id "verity/pkg/domain"
	"verity/pkg/requestcontext"
)

// WithUserID adds an authenticated user id to the request context, simulating
// what the auth middleware does for authenticated requests.
func WithUserID(req *http.Request, userID string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), id.UserID(userID))
	return req.WithContext(ctx)
}

// WithRequestTime pins the request time so handlers observe a fixed clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), now)
	return req.WithContext(ctx)
}

// ContextAt returns a background context with the request time pinned.
func ContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
