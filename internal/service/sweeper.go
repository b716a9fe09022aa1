// Package service hosts background jobs that run beside the HTTP
// server.
package service

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sdeskhq/support-desk/internal/auth"
)

// StartSweeper schedules the expired refresh-token sweep on the
// given cron spec (e.g. "@hourly") and starts it. The sweep never
// runs on the request path; each run is bounded by its own timeout
// so a store outage cannot pile up overlapping jobs.
func StartSweeper(schedule string, authority *auth.Authority) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := authority.SweepExpired(ctx)
		if err != nil {
			log.Printf("token-sweeper: sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("token-sweeper: removed %d expired refresh tokens", n)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
