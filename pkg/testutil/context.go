package testutil

import (
	"context"
	"time"

	"registrar/pkg/requestcontext"
)

// FixedTime is an arbitrary stable timestamp for deterministic tests.
var FixedTime = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

// ContextWithTime returns a context whose request-scoped clock is pinned to t.
func ContextWithTime(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// ContextWithFixedTime returns a context pinned to FixedTime.
func ContextWithFixedTime() context.Context {
	return ContextWithTime(FixedTime)
}
