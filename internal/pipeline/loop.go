package pipeline

import (
	"context"
	"sync"
	"time"
)

// Run executes cycles forever at a fixed interval until ctx is done. Stop
// requests only take effect between cycles: a running cycle (including its
// rate-limit cooldowns) is never cancelled midway, so each started cycle
// leaves no half-written state behind.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) {
	o.log.Info().Dur("interval", interval).Msg("Polling loop started")
	for {
		o.runFencedCycle(context.WithoutCancel(ctx))

		o.log.Info().Dur("interval", interval).Msg("Waiting for next cycle")
		select {
		case <-ctx.Done():
			o.log.Info().Msg("Polling loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

// runFencedCycle runs one cycle and absorbs anything it throws, so one bad
// cycle cannot take the loop down.
func (o *Orchestrator) runFencedCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("Cycle panicked")
		}
	}()
	if _, err := o.RunCycle(ctx); err != nil {
		o.log.Error().Err(err).Msg("Cycle failed")
	}
}

// Controller is the operator start/stop surface over the polling loop. It
// has two states, idle and running; Start while running is a no-op, and Stop
// lets the current cycle finish before the loop exits.
type Controller struct {
	orch     *Orchestrator
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewController(orch *Orchestrator, interval time.Duration) *Controller {
	return &Controller{orch: orch, interval: interval}
}

// Start launches the polling loop. Returns false when it was already
// running.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go func() {
		defer close(c.done)
		c.orch.Run(loopCtx, c.interval)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()
	return true
}

// Stop requests the loop to exit and waits for the current cycle to finish.
// Returns false when nothing was running.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return true
}

// Running reports whether the loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
