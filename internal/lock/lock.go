// Package lock provides the non-blocking per-record operation lock held around
// finalize and reverse.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("operation already in progress")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	// Obtain returns ErrLocked at once when key is held by someone else.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// WithLock runs fn while holding key and releases it on every exit path.
func WithLock(ctx context.Context, locker Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) (err error) {
	lease, err := locker.Obtain(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		releaseErr := lease.Release(context.WithoutCancel(ctx))
		if err == nil && releaseErr != nil {
			err = fmt.Errorf("release lock %s: %w", key, releaseErr)
		}
	}()
	return fn(ctx)
}

// Local is an in-process locker for a single server instance.
type Local struct {
	mu    sync.Mutex
	held  map[string]localHold
	token uint64
	now   func() time.Time
}

type localHold struct {
	token   uint64
	expires time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]localHold), now: time.Now}
}

func (l *Local) Obtain(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if hold, ok := l.held[key]; ok && (hold.expires.IsZero() || now.Before(hold.expires)) {
		return nil, ErrLocked
	}

	l.token++
	hold := localHold{token: l.token}
	if ttl > 0 {
		hold.expires = now.Add(ttl)
	}
	l.held[key] = hold
	return &localLease{owner: l, key: key, token: hold.token}, nil
}

type localLease struct {
	owner *Local
	key   string
	token uint64
	once  sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		defer l.owner.mu.Unlock()
		if hold, ok := l.owner.held[l.key]; ok && hold.token == l.token {
			delete(l.owner.held, l.key)
		}
	})
	return nil
}

// Redis holds locks in Redis so every server instance shares them.
type Redis struct {
	client *redislock.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "fuelbook:lock:"
	}
	return &Redis{client: redislock.New(rdb), prefix: prefix}
}

func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	held, err := r.client.Obtain(ctx, r.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return &redisLease{lock: held}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

func (l *redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
