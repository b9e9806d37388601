package orders

import (
	"context"

	"go.uber.org/multierr"
)

// compensations collects undo steps during checkout. On failure they run in
// reverse acquisition order, so the last resource taken is the first
// returned. Each step must itself be idempotent.
type compensations struct {
	steps []func(ctx context.Context) error
}

func (c *compensations) add(step func(ctx context.Context) error) {
	c.steps = append(c.steps, step)
}

func (c *compensations) run(ctx context.Context) error {
	var runErr error
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			runErr = multierr.Append(runErr, err)
		}
	}
	return runErr
}
