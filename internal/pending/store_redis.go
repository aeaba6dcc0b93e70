package pending

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending contacts in a sorted set scored by registration
// time, so several dashboard instances can share one pending pool. Claiming
// must stay an atomic select-and-remove (two instances must not both claim
// the same contact), hence the Lua script.
type RedisStore struct {
	rdb *redis.Client
	key string
	cap int
}

func NewRedisStore(rdb *redis.Client, key string, capacity int) *RedisStore {
	if key == "" {
		key = "pending_contacts"
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisStore{rdb: rdb, key: key, cap: capacity}
}

var claimRecentScript = redis.NewScript(`
-- KEYS[1] = pending zset
-- ARGV[1] = min score (now - ttl, unix ms)
-- Returns the newest member within the window, removed; nil otherwise.
local entries = redis.call('ZRANGEBYSCORE', KEYS[1], ARGV[1], '+inf')
if #entries == 0 then
  return false
end
local latest = entries[#entries]
redis.call('ZREM', KEYS[1], latest)
return latest
`)

func (s *RedisStore) Register(ctx context.Context, c Contact) error {
	if s.rdb == nil {
		return errors.New("pending: redis client is nil")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StoredAt.IsZero() {
		c.StoredAt = time.Now()
	}
	member, err := json.Marshal(c)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(c.StoredAt.UnixMilli()),
		Member: string(member),
	})
	// Capacity bound: keep the newest cap entries.
	pipe.ZRemRangeByRank(ctx, s.key, 0, int64(-s.cap-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ClaimRecent(ctx context.Context, ttl time.Duration) (Contact, bool, error) {
	if s.rdb == nil {
		return Contact{}, false, errors.New("pending: redis client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	min := time.Now().Add(-ttl).UnixMilli()

	raw, err := claimRecentScript.Run(ctx, s.rdb, []string{s.key}, min).Text()
	if errors.Is(err, redis.Nil) {
		return Contact{}, false, nil
	}
	if err != nil {
		return Contact{}, false, err
	}
	var c Contact
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Contact{}, false, err
	}
	return c, true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if s.rdb == nil {
		return errors.New("pending: redis client is nil")
	}
	return s.rdb.Del(ctx, s.key).Err()
}
