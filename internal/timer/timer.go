// Package timer schedules the periodic gate liveness re-check that keeps a
// long-lived run honest between stage transitions.
package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slok/stagegate/internal/log"
)

// DefaultInterval is the default period between liveness re-checks.
const DefaultInterval = 5 * time.Minute

// TickerConfig is the configuration for the liveness ticker.
type TickerConfig struct {
	// Interval is the re-check period.
	Interval time.Duration
	// Check is the function run on every tick.
	Check  func(ctx context.Context) error
	Logger log.Logger
}

func (c *TickerConfig) defaults() error {
	if c.Check == nil {
		return fmt.Errorf("check function is required")
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "timer.Ticker"})

	return nil
}

// Ticker runs a check function on a fixed cron schedule. A failing check is
// logged, it never kills the scheduler.
type Ticker struct {
	cron     *cron.Cron
	interval time.Duration
	check    func(ctx context.Context) error
	logger   log.Logger
}

// NewTicker creates a new liveness ticker.
func NewTicker(cfg TickerConfig) (*Ticker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Ticker{
		cron:     cron.New(),
		interval: cfg.Interval,
		check:    cfg.Check,
		logger:   cfg.Logger,
	}, nil
}

// Run schedules the check and blocks until the context is done.
func (t *Ticker) Run(ctx context.Context) error {
	_, err := t.cron.AddFunc(fmt.Sprintf("@every %s", t.interval), func() {
		err := t.check(ctx)
		if err != nil {
			t.logger.Errorf("Liveness check failed: %s", err)
			return
		}
		t.logger.Debugf("Liveness check passed")
	})
	if err != nil {
		return fmt.Errorf("could not schedule liveness check: %w", err)
	}

	t.logger.Infof("Liveness re-check scheduled every %s", t.interval)
	t.cron.Start()

	<-ctx.Done()

	stopCtx := t.cron.Stop()
	<-stopCtx.Done()

	return ctx.Err()
}
