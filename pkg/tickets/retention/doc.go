// Package retention prunes old tickets.
//
// The Pruner deletes tickets older than a number of days and keeps the
// store under a maximum record count, optionally archiving the removed
// tickets as JSON first. Start runs it on a cron schedule.
package retention
