package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	r := NewRedis(rdb, "test:", ttl)
	r.retry = time.Millisecond
	return r, mr
}

func TestRedisSerialisesSameKey(t *testing.T) {
	r, mr := newRedisLocker(t, time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := r.Lock(ctx, "market:1")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	if counter != 10 {
		t.Errorf("counter = %d, want 10 (lost update)", counter)
	}
	if mr.Exists("test:lock:market:1") {
		t.Error("lock key still present after all unlocks")
	}
}

func TestRedisTimeout(t *testing.T) {
	r, mr := newRedisLocker(t, time.Minute)

	unlock, err := r.Lock(context.Background(), "market:2")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if ttl := mr.TTL("test:lock:market:2"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("lock ttl = %v, want (0, 1m]", ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Lock(ctx, "market:2"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() error = %v, want ErrLockTimeout", err)
	}

	unlock()
	unlock()
	again, err := r.Lock(context.Background(), "market:2")
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	again()
}

func TestRedisUnlockKeepsForeignToken(t *testing.T) {
	r, mr := newRedisLocker(t, time.Second)

	unlock, err := r.Lock(context.Background(), "market:3")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	// The holder stalls past the TTL and another process takes the key.
	mr.FastForward(2 * time.Second)
	other, err := r.Lock(context.Background(), "market:3")
	if err != nil {
		t.Fatalf("Lock() after expiry error = %v", err)
	}
	owner, _ := mr.Get("test:lock:market:3")

	unlock()
	if got, _ := mr.Get("test:lock:market:3"); got != owner {
		t.Errorf("stale unlock removed the new holder's key (got %q, want %q)", got, owner)
	}
	other()
	if mr.Exists("test:lock:market:3") {
		t.Error("lock key still present after owner unlocked")
	}
}
