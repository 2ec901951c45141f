// Package scheduler turns schedule strings into cron triggers.
//
// Jobs run on the cron goroutine with a per-job timeout. A job that is still
// running when its next trigger fires is skipped for that trigger.
package scheduler
