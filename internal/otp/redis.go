package otp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cropintel-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:"

// compareAndDelete deletes KEYS[1] only when its code field equals ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("HGET", KEYS[1], "code") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps records as hashes at otp:<email>. Each key carries a TTL of
// twice the code expiry, so a stale record still answers Expired for one extra
// window before Redis drops it.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisStore(client redis.UniversalClient, expiry time.Duration) *RedisStore {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &RedisStore{client: client, retention: 2 * expiry}
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	key := redisKeyPrefix + rec.Email
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"email", rec.Email,
			"code", rec.Code,
			"issued_at", strconv.FormatInt(rec.IssuedAt.UnixNano(), 10),
		)
		p.Expire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp: %w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+email).Result()
	if err != nil {
		return nil, fmt.Errorf("load otp: %w: %v", domain.ErrPersistence, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrOTPNotFound
	}
	nanos, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode otp issued_at: %w: %v", domain.ErrPersistence, err)
	}
	return &Record{
		Email:    email,
		Code:     fields["code"],
		IssuedAt: time.Unix(0, nanos).UTC(),
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+email).Err(); err != nil {
		return fmt.Errorf("delete otp: %w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, email, code string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{redisKeyPrefix + email}, code).Int()
	if err != nil {
		return false, fmt.Errorf("consume otp: %w: %v", domain.ErrPersistence, err)
	}
	return n == 1, nil
}
