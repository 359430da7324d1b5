package main

import (
	"time"

	"github.com/robfig/cron/v3"
)

// newScheduler registers the periodic maintenance jobs: pruning finished
// report pool entries and sweeping stuck background tasks.
func (app *application) newScheduler() *cron.Cron {
	c := cron.New()

	cleanupAge := time.Duration(app.config.Worker.CleanupAgeMinutes) * time.Minute
	_, err := c.AddFunc("*/10 * * * *", func() {
		removed := app.pool.Cleanup(cleanupAge)
		if removed > 0 {
			app.logger.Info("pruned finished report jobs", "removed", removed)
		}
	})
	if err != nil {
		app.logger.Error("failed to schedule pool cleanup", "error", err)
	}

	_, err = c.AddFunc("*/15 * * * *", func() {
		app.runner.SweepStuckTasks()
	})
	if err != nil {
		app.logger.Error("failed to schedule stuck task sweep", "error", err)
	}

	return c
}
