package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NonceTTL bounds how long an issued nonce stays usable.
const NonceTTL = 10 * time.Minute

// NonceStore issues single-use login nonces.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	// Consume reports whether nonce was outstanding, and retires it.
	Consume(ctx context.Context, nonce string) (bool, error)
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var nonceSuffix = regexp.MustCompile(`at (\w{32})$`)

// ExtractNonce pulls the nonce from a sign-in message, which ends in
// "at <32 hex chars>".
func ExtractNonce(message string) (string, bool) {
	m := nonceSuffix.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MemoryNonceStore keeps nonces in process. Suitable for a single instance.
type MemoryNonceStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	nonces map[string]time.Time
}

func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	if ttl <= 0 {
		ttl = NonceTTL
	}
	return &MemoryNonceStore{ttl: ttl, now: time.Now, nonces: make(map[string]time.Time)}
}

func (s *MemoryNonceStore) Issue(context.Context) (string, error) {
	nonce := newNonce()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for n, exp := range s.nonces {
		if now.After(exp) {
			delete(s.nonces, n)
		}
	}
	s.nonces[nonce] = now.Add(s.ttl)
	return nonce, nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	if !ok {
		return false, nil
	}
	delete(s.nonces, nonce)
	return !s.now().After(exp), nil
}

// RedisNonceStore shares nonces across instances. Consume relies on DEL
// returning the number of keys removed, so only one caller can win.
type RedisNonceStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisNonceStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisNonceStore {
	if ttl <= 0 {
		ttl = NonceTTL
	}
	return &RedisNonceStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisNonceStore) key(nonce string) string {
	return s.prefix + "nonce:" + nonce
}

func (s *RedisNonceStore) Issue(ctx context.Context) (string, error) {
	nonce := newNonce()
	if err := s.rdb.Set(ctx, s.key(nonce), 1, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis: store nonce: %w", err)
	}
	return nonce, nil
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: consume nonce: %w", err)
	}
	return n == 1, nil
}

var (
	_ NonceStore = (*MemoryNonceStore)(nil)
	_ NonceStore = (*RedisNonceStore)(nil)
)
