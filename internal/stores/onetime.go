package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCodeNotFound = errors.New("one-time code not found")
	ErrCodeExpired  = errors.New("one-time code expired")
	ErrCodeMismatch = errors.New("one-time code mismatch")
	ErrCodeBackend  = errors.New("one-time code backend unavailable")
)

// CodeStore holds pending delivery codes keyed by identifier (username plus
// delivery method). A code is single-use: Consume removes it on match, and
// purges it when found expired. A mismatch leaves the code in place for
// retries within its lifetime.
type CodeStore interface {
	Save(ctx context.Context, identifier, code string, ttl time.Duration) error
	Consume(ctx context.Context, identifier, submitted string) error
	Purge(ctx context.Context, identifier string) error
}

type memoryCode struct {
	code      string
	expiresAt int64
}

// MemoryCodeStore keeps pending codes in a locked map with lazy expiry.
type MemoryCodeStore struct {
	mu    sync.Mutex
	now   func() time.Time
	codes map[string]memoryCode
}

func NewMemoryCodeStore(now func() time.Time) *MemoryCodeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCodeStore{
		now:   now,
		codes: make(map[string]memoryCode),
	}
}

func (s *MemoryCodeStore) Save(_ context.Context, identifier, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[identifier] = memoryCode{
		code:      code,
		expiresAt: s.now().Add(ttl).Unix(),
	}
	return nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, identifier, submitted string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[identifier]
	if !ok {
		return ErrCodeNotFound
	}
	if s.now().Unix() > entry.expiresAt {
		delete(s.codes, identifier)
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(submitted)) != 1 {
		return ErrCodeMismatch
	}

	delete(s.codes, identifier)
	return nil
}

func (s *MemoryCodeStore) Purge(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.codes, identifier)
	return nil
}

// RedisCodeStore stores pending codes under a TTL so abandoned entries
// vanish on their own.
type RedisCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisCodeStore(redisClient redis.UniversalClient, prefix string) *RedisCodeStore {
	if prefix == "" {
		prefix = "woc"
	}
	return &RedisCodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisCodeStore) key(identifier string) string {
	return s.prefix + ":" + identifier
}

func (s *RedisCodeStore) Save(ctx context.Context, identifier, code string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(identifier), code, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeBackend, err)
	}
	return nil
}

func (s *RedisCodeStore) Consume(ctx context.Context, identifier, submitted string) error {
	stored, err := s.redis.Get(ctx, s.key(identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The TTL already reaped it; indistinguishable from never issued.
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrCodeBackend, err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return ErrCodeMismatch
	}

	if err := s.redis.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeBackend, err)
	}
	return nil
}

func (s *RedisCodeStore) Purge(ctx context.Context, identifier string) error {
	if err := s.redis.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeBackend, err)
	}
	return nil
}
