package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when another finalize for the same session holds
// the lock for the whole acquisition window.
var ErrLockBusy = errors.New("session lock busy")

// SessionLock serializes finalize/cleanup calls for one session id. Two
// concurrent finalizes for the same session would otherwise compute
// divergent leftover sets; holding the lock across promote-then-purge keeps
// the second call a pure no-op.
type SessionLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionLock(client *redis.Client, ttl time.Duration) *SessionLock {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &SessionLock{client: client, ttl: ttl}
}

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Acquire takes the lock for sessionID, retrying until the TTL window is
// exhausted. The returned release func is safe to call once; it only removes
// the lock if this caller still owns it.
func (l *SessionLock) Acquire(ctx context.Context, sessionID string) (func(), error) {
	if l.client == nil {
		return func() {}, nil
	}

	key := "session_lock:" + sessionID
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.client.Eval(ctx, unlockScript, []string{key}, token)
	}
	return release, nil
}
