package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HitMode selects what WindowStore.Hit does after pruning the window.
type HitMode int

const (
	HitPeek   HitMode = iota // count only
	HitAdmit                 // add a hit only while below the limit
	HitRecord                // add a hit unconditionally
)

// WindowState describes a sliding window after a Hit.
type WindowState struct {
	Added  bool
	Count  int       // hits inside the window, including one just added
	Oldest time.Time // oldest hit inside the window; zero when empty
}

// windowScript prunes hits older than the window, counts the rest and adds a
// hit according to the mode.  Returns {added, count, oldest_ms}.
var windowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local max = tonumber(ARGV[3])
	local member = ARGV[4]
	local mode = tonumber(ARGV[5])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)
	local added = 0
	if mode == 2 or (mode == 1 and count < max) then
		redis.call('ZADD', key, now, member)
		count = count + 1
		added = 1
	end

	local oldest = 0
	local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if first[2] then oldest = tonumber(first[2]) end
	if count > 0 then redis.call('PEXPIRE', key, window) end
	return { added, count, oldest }
`)

// WindowStore keeps per-identifier hit timestamps in Redis sorted sets.
type WindowStore struct {
	rdb    *redis.Client
	prefix string
}

func NewWindowStore(rdb *redis.Client, prefix string) *WindowStore {
	if prefix == "" {
		prefix = "otp:rl"
	}
	return &WindowStore{rdb: rdb, prefix: prefix}
}

// Hit evaluates the window for id at now in a single atomic script.
func (s *WindowStore) Hit(ctx context.Context, id string, now time.Time, window time.Duration, max int, mode HitMode) (WindowState, error) {
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
	vals, err := windowScript.Run(ctx, s.rdb, []string{s.prefix + ":" + id},
		now.UnixMilli(), window.Milliseconds(), max, member, int(mode)).Int64Slice()
	if err != nil {
		return WindowState{}, err
	}
	if len(vals) != 3 {
		return WindowState{}, fmt.Errorf("window script: unexpected result %v", vals)
	}
	st := WindowState{Added: vals[0] == 1, Count: int(vals[1])}
	if vals[2] > 0 {
		st.Oldest = time.UnixMilli(vals[2]).UTC()
	}
	return st, nil
}
