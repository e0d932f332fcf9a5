// Package saga runs an ordered list of compensable steps. A failed forward run is not
// rolled back automatically; compensation is a separate, explicit call.
package saga

import (
	"context"
	"errors"
	"fmt"
)

type Step struct {
	Name       string
	Apply      func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError names the step that stopped a forward run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Coordinator struct {
	steps     []Step
	completed []Step
}

func New(steps ...Step) *Coordinator {
	return &Coordinator{steps: steps}
}

// Run applies the steps in order and stops at the first failure. Steps applied before
// the failure stay applied and are reported by Completed.
func (c *Coordinator) Run(ctx context.Context) error {
	c.completed = c.completed[:0]
	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
		if err := step.Apply(ctx); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
		c.completed = append(c.completed, step)
	}
	return nil
}

func (c *Coordinator) Completed() []string {
	names := make([]string, 0, len(c.completed))
	for _, step := range c.completed {
		names = append(names, step.Name)
	}
	return names
}

// Compensate undoes the completed steps in reverse order. Every step is attempted; the
// returned error joins all failures.
func (c *Coordinator) Compensate(ctx context.Context) error {
	return Compensate(ctx, c.completed)
}

// Compensate runs the compensations of steps from last to first.
func Compensate(ctx context.Context, steps []Step) error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, &StepError{Step: step.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}
