package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the lock key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis is a cross-process Locker built on SET NX with a TTL. The TTL bounds
// how long a crashed holder can keep a market locked.
type Redis struct {
	rdb      redis.UniversalClient
	unlockSc *redis.Script
	ttl      time.Duration
	retry    time.Duration
	prefix   string
}

// NewRedis creates a Redis locker. Keys are stored as "<prefix>lock:<key>".
func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
		ttl:      ttl,
		retry:    25 * time.Millisecond,
		prefix:   prefix,
	}
}

func (r *Redis) lockKey(key string) string {
	return r.prefix + "lock:" + key
}

// Lock spins on SET NX until it wins the key or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := r.lockKey(key)

	for {
		ok, err := r.rdb.SetNX(ctx, lk, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrLockTimeout
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Background context so the key is released even if ctx was cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.unlockSc.Run(unlockCtx, r.rdb, []string{lk}, token).Err()
		})
	}, nil
}

var (
	_ Locker = (*Local)(nil)
	_ Locker = (*Redis)(nil)
)
