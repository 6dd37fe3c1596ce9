package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/invoicely/pkg/logger"
)

const (
	// 00:00 UTC on the first day of every month.
	monthlyUsageResetSpec = "0 0 1 * *"
	overdueReportSpec     = "@hourly"
)

type job struct {
	name string
	spec string
	run  func(context.Context) error
}

// scheduleJobs registers jobs on c. Failures are logged; the next tick retries.
func scheduleJobs(ctx context.Context, c *cron.Cron, log *slog.Logger, jobs ...job) error {
	for _, j := range jobs {
		_, err := c.AddFunc(j.spec, func() {
			log := log.With(logger.Component(j.name))
			if err := j.run(ctx); err != nil {
				log.ErrorContext(ctx, "scheduled job failed", logger.Error(err))
				return
			}
			log.DebugContext(ctx, "scheduled job finished")
		})
		if err != nil {
			return err
		}
	}
	return nil
}
