package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIsNonBlocking(t *testing.T) {
	ctx := context.Background()
	locker := NewLocal()

	lease, err := locker.Obtain(ctx, "dc-1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "dc-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := locker.Obtain(ctx, "dc-2", time.Minute)
	require.NoError(t, err, "keys are independent")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	again, err := locker.Obtain(ctx, "dc-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocalExpiredHoldCanBeTaken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	locker := NewLocal()
	locker.now = func() time.Time { return now }

	stale, err := locker.Obtain(ctx, "dc-1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := locker.Obtain(ctx, "dc-1", time.Second)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	_, err = locker.Obtain(ctx, "dc-1", time.Second)
	assert.ErrorIs(t, err, ErrLocked, "a stale lease must not release the new holder")
	require.NoError(t, fresh.Release(ctx))
	require.NoError(t, fresh.Release(ctx))
}

func TestWithLockReleasesOnError(t *testing.T) {
	ctx := context.Background()
	locker := NewLocal()
	boom := errors.New("ledger down")

	err := WithLock(ctx, locker, "dc-1", time.Minute, func(ctx context.Context) error {
		_, inner := locker.Obtain(ctx, "dc-1", time.Minute)
		assert.ErrorIs(t, inner, ErrLocked)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	lease, err := locker.Obtain(ctx, "dc-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	ctx := context.Background()
	locker := NewLocal()

	func() {
		defer func() { _ = recover() }()
		_ = WithLock(ctx, locker, "dc-1", time.Minute, func(context.Context) error {
			panic("unexpected")
		})
	}()

	lease, err := locker.Obtain(ctx, "dc-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestWithLockDoesNotRunWhenHeld(t *testing.T) {
	ctx := context.Background()
	locker := NewLocal()
	lease, err := locker.Obtain(ctx, "dc-1", time.Minute)
	require.NoError(t, err)
	defer func() { _ = lease.Release(ctx) }()

	ran := false
	err = WithLock(ctx, locker, "dc-1", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, ran)
}
