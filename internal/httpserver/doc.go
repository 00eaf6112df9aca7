// Package httpserver orchestrates the control plane's HTTP process lifecycle:
// an immutable App built from functional options, a chi-backed router wired
// through internal/api, liveness/readiness endpoints, and graceful shutdown
// on SIGINT/SIGTERM with an ordered shutdown-hooks list for closing the
// Postgres pool, the Redis client, and any background workers.
package httpserver
