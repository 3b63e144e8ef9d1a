package utils

import (
	"context"
	"time"
)

// Query timeouts by profile. Single-record lookups (a dispatch by id, a
// bundle by serial) stay on the short deadline, list endpoints get the
// default, and the register exports walk every dispatch of a work order
// with its line items, so they get room to run.
const (
	FastQueryTimeout    = 5 * time.Second
	DefaultQueryTimeout = 15 * time.Second
	SlowQueryTimeout    = 2 * time.Minute
)

// GetQueryContext derives a deadline-bound context for a database query.
// A nil parent falls back to the background context.
func GetQueryContext(parentCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	return context.WithTimeout(parentCtx, timeout)
}

// GetFastQueryContext bounds a single-record lookup.
func GetFastQueryContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	return GetQueryContext(parentCtx, FastQueryTimeout)
}

// GetDefaultQueryContext bounds an ordinary list or detail query.
func GetDefaultQueryContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	return GetQueryContext(parentCtx, DefaultQueryTimeout)
}

// GetSlowQueryContext bounds a reporting query such as the dispatch
// register export.
func GetSlowQueryContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	return GetQueryContext(parentCtx, SlowQueryTimeout)
}
