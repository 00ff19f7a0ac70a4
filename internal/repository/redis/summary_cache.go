package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
)

// setIfNewer replaces the cached summary only when the candidate sorts after
// the cached one, so a slow reader can never overwrite a newer upload.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'order')
if cur and cur >= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'order', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// SummaryCache keeps the latest summary per owner.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

const defaultTTL = 10 * time.Minute

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SummaryCache{client: client, ttl: ttl, now: time.Now}
}

func latestKey(owner string) string {
	return "dataset_latest:" + owner
}

// orderKey is a fixed width string whose lexical order matches newest-first order.
func orderKey(s *entity.DatasetSummary) string {
	return fmt.Sprintf("%020d:%s", s.CreatedAt.UnixMicro(), s.ID)
}

// tombstoneKey sorts after every summary created up to t, '~' being above any
// hex digit or dash of an id.
func tombstoneKey(t time.Time) string {
	return fmt.Sprintf("%020d:~", t.UnixMicro())
}

func (c *SummaryCache) GetLatest(ctx context.Context, owner string) (*entity.DatasetSummary, error) {
	raw, err := c.client.HGet(ctx, latestKey(owner), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get latest: %w", err)
	}

	var summary entity.DatasetSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, nil
}

// SetLatest stores summary unless a newer one is already cached. It reports
// whether the cache was updated.
func (c *SummaryCache) SetLatest(ctx context.Context, summary *entity.DatasetSummary) (bool, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return false, fmt.Errorf("encode summary: %w", err)
	}

	res, err := setIfNewer.Run(ctx, c.client,
		[]string{latestKey(summary.Owner)},
		orderKey(summary), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set latest: %w", err)
	}
	return res == 1, nil
}

// Invalidate drops the cached summary of each owner. Only summaries created
// after the call may be cached again while the marker lives.
func (c *SummaryCache) Invalidate(ctx context.Context, owners ...string) error {
	if len(owners) == 0 {
		return nil
	}
	// The key keeps an order with no data for one TTL, so a summary read or
	// committed before the prune cannot be cached again afterwards.
	order := tombstoneKey(c.now())
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range owners {
			key := latestKey(o)
			pipe.HDel(ctx, key, "data")
			pipe.HSet(ctx, key, "order", order)
			pipe.PExpire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
