// Package integration verifies that agent traces reach PostgreSQL and
// MongoDB after HTTP requests. The databases run in testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
