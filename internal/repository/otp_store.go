package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

// consumeScript atomically checks and consumes an OTP record.  It returns 1
// only when the record exists, is unconsumed, unexpired at ARGV[2] and its
// hash equals ARGV[1].  A mismatch leaves the record untouched.
var consumeScript = redis.NewScript(`
	local v = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at_ms', 'consumed')
	if not v[1] then return 0 end
	if v[3] == '1' then return 0 end
	if tonumber(ARGV[2]) >= tonumber(v[2]) then return 0 end
	if v[1] ~= ARGV[1] then return 0 end
	redis.call('HSET', KEYS[1], 'consumed', '1')
	return 1
`)

// OTPStore keeps one OTP record per email in a Redis hash.
type OTPStore struct {
	rdb    *redis.Client
	prefix string
}

func NewOTPStore(rdb *redis.Client, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &OTPStore{rdb: rdb, prefix: prefix}
}

func (s *OTPStore) key(email string) string { return s.prefix + ":code:" + email }

// Put writes rec, replacing any previous record for the same email.  The key
// expires together with the code.
func (s *OTPStore) Put(ctx context.Context, rec model.OTPRecord) error {
	key := s.key(rec.Email)
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"code_hash", rec.CodeHash,
			"created_at_ms", rec.CreatedAt.UnixMilli(),
			"expires_at_ms", rec.ExpiresAt.UnixMilli(),
			"consumed", "0",
		)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

// Get returns the stored record for email or ErrNotFound.  It is a test
// helper; the verify path goes through Consume.
func (s *OTPStore) Get(ctx context.Context, email string) (*model.OTPRecord, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	created, err1 := strconv.ParseInt(m["created_at_ms"], 10, 64)
	expires, err2 := strconv.ParseInt(m["expires_at_ms"], 10, 64)
	if err := errors.Join(err1, err2); err != nil {
		return nil, err
	}
	return &model.OTPRecord{
		Email:     email,
		CodeHash:  m["code_hash"],
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
		Consumed:  m["consumed"] == "1",
	}, nil
}

// Consume marks the record consumed when codeHash matches and the record is
// still active at now.  It reports whether the record was consumed.
func (s *OTPStore) Consume(ctx context.Context, email, codeHash string, now time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{s.key(email)}, codeHash, now.UnixMilli()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
