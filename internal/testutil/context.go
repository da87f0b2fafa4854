// Package testutil provides helpers shared by the package tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext returns a context that is canceled after 30 seconds or when
// the test ends, whichever comes first.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
