package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(log *[]string, name string, fail error) Step {
	return Step{
		Name: name,
		Apply: func(context.Context) error {
			*log = append(*log, "apply:"+name)
			return fail
		},
		Compensate: func(context.Context) error {
			*log = append(*log, "undo:"+name)
			return nil
		},
	}
}

func TestRunStopsAtFirstFailureWithoutRollback(t *testing.T) {
	var log []string
	boom := errors.New("ledger down")
	c := New(recorder(&log, "stock", nil), recorder(&log, "invoice", nil), recorder(&log, "payment", boom), recorder(&log, "journal", nil))

	err := c.Run(context.Background())
	require.ErrorIs(t, err, boom)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "payment", stepErr.Step)
	assert.Equal(t, []string{"apply:stock", "apply:invoice", "apply:payment"}, log)
	assert.Equal(t, []string{"stock", "invoice"}, c.Completed())
}

func TestCompensateRunsInReverseAndContinuesPastFailures(t *testing.T) {
	var log []string
	steps := []Step{
		recorder(&log, "stock", nil),
		{
			Name:  "invoice",
			Apply: func(context.Context) error { return nil },
			Compensate: func(context.Context) error {
				log = append(log, "undo:invoice")
				return errors.New("linked")
			},
		},
		recorder(&log, "payment", nil),
	}
	c := New(steps...)
	require.NoError(t, c.Run(context.Background()))
	log = log[:0]

	err := c.Compensate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step invoice: linked")
	assert.Equal(t, []string{"undo:payment", "undo:invoice", "undo:stock"}, log)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(recorder(&log, "stock", nil)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, log)
}
