// Package stores holds the short-lived verification state behind the
// two-factor flow: open challenges and pending delivery codes. Both come in
// an in-process variant and a Redis-backed variant for stations that share
// verification state with a backoffice service.
package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeBackend  = errors.New("challenge backend unavailable")
)

// ChallengeRecord is the stored form of an open two-factor challenge.
type ChallengeRecord struct {
	Username  string
	Method    uint8
	CreatedAt int64
	ExpiresAt int64
}

// ChallengeStore persists open challenges keyed by challenge ID. Get must
// purge and report expired records; Delete consumes a challenge.
type ChallengeStore interface {
	Save(ctx context.Context, challengeID string, record *ChallengeRecord, ttl time.Duration) error
	Get(ctx context.Context, challengeID string) (*ChallengeRecord, error)
	Delete(ctx context.Context, challengeID string) (bool, error)
}

// MemoryChallengeStore keeps challenges in a locked map. Expiry is enforced
// lazily on Get, which is sufficient because challenges are only ever
// observed through lookups.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*ChallengeRecord
}

func NewMemoryChallengeStore(now func() time.Time) *MemoryChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryChallengeStore{
		now:     now,
		records: make(map[string]*ChallengeRecord),
	}
}

func (s *MemoryChallengeStore) Save(_ context.Context, challengeID string, record *ChallengeRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	s.records[challengeID] = &stored
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, challengeID string) (*ChallengeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[challengeID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if s.now().Unix() > record.ExpiresAt {
		delete(s.records, challengeID)
		return nil, ErrChallengeExpired
	}

	out := *record
	return &out, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[challengeID]
	delete(s.records, challengeID)
	return ok, nil
}

// RedisChallengeStore stores challenges as versioned binary records with a
// TTL matching the challenge lifetime.
type RedisChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisChallengeStore(redisClient redis.UniversalClient, prefix string) *RedisChallengeStore {
	if prefix == "" {
		prefix = "wac"
	}
	return &RedisChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisChallengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *RedisChallengeStore) Save(ctx context.Context, challengeID string, record *ChallengeRecord, ttl time.Duration) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, challengeID string) (*ChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

func encodeChallengeRecord(record *ChallengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(record.Method)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Username) > 65535 {
		return nil, errors.New("challenge username length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Username))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Username)

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*ChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &ChallengeRecord{}
	if record.Method, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var nameLen uint16
	if err := binary.Read(reader, binary.BigEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, name); err != nil {
		return nil, err
	}
	record.Username = string(name)

	return record, nil
}
