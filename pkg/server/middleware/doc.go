// Package middleware provides the HTTP middleware chain of the status API.
//
// The chain, outermost first:
//
//	RequestIDMiddleware -> LoggingMiddleware -> RecoveryMiddleware -> handler
//
// Non-streaming routes are additionally wrapped in TimeoutMiddleware by the
// server. The event stream is not, since it stays open for the life of the
// connection.
//
// Errors are written as JSON:
//
//	{"error": {"code": "invalid_query", "message": "invalid sort field: foo"}}
package middleware
