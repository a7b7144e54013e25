// Package guard serializes events per identity and replays redelivered events.
package guard

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix        = "intake:lock:"
	defaultRetryDelay = 50 * time.Millisecond
)

// ErrLockLost is returned by a release whose token no longer owns the key,
// typically because the TTL expired mid-event.
var ErrLockLost = stderrors.New("identity lock no longer held")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker hands out per-identity mutual exclusion backed by SET NX PX.
type Locker struct {
	client     *redis.Client
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	newToken   func() string
	log        logger.Logger
}

func NewLocker(client *redis.Client, ttl, wait time.Duration, log logger.Logger) *Locker {
	return &Locker{
		client:     client,
		ttl:        ttl,
		wait:       wait,
		retryDelay: defaultRetryDelay,
		newToken:   func() string { return uuid.New().String() },
		log:        log.WithFields(map[string]interface{}{"component": "identity-lock"}),
	}
}

// Release frees a held lock.
type Release func(ctx context.Context) error

// Acquire blocks up to the configured wait for identity's lock.
func (l *Locker) Acquire(ctx context.Context, identity string) (Release, error) {
	key := lockPrefix + identity
	token := l.newToken()
	deadline := time.Now().Add(l.wait)
	waited := false

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock for %s: %w", identity, err)
		}
		if ok {
			if waited {
				metrics.IntakeLockContention.WithLabelValues("waited").Inc()
			}
			return l.releaser(key, token), nil
		}

		waited = true
		if !time.Now().Before(deadline) {
			metrics.IntakeLockContention.WithLabelValues("timeout").Inc()
			l.log.Warn("Identity lock wait exhausted", map[string]interface{}{
				"identity": identity,
				"wait":     l.wait.String(),
			})
			return nil, errors.NewIdentityLockTimeoutError(identity)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Locker) releaser(key, token string) Release {
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			l.log.Warn("Identity lock expired before release", map[string]interface{}{"key": key})
			return ErrLockLost
		}
		return nil
	}
}
