// Package health runs named component checks for the liveness and readiness
// endpoints. Readiness runs every registered check concurrently, each bounded
// by the checker's timeout, and reports "degraded" when any check fails.
package health
