package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// RedisRepo stores each block as a hash and keeps a sorted set of pending
// block ids scored by start millis. Claim and unclaim run as Lua scripts so
// the flag check, the write and the index update are one atomic step.
type RedisRepo struct {
	client redis.UniversalClient
	prefix string
}

var _ Repo = (*RedisRepo)(nil)

var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
if redis.call('HGET', KEYS[1], 'reminder_sent') ~= '0' then
	return false
end
redis.call('HSET', KEYS[1], 'reminder_sent', '1', 'updated_at', ARGV[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// insertScript refuses an existing id so the pending index never holds a
// stale start for a block.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'id', ARGV[1], 'owner_contact', ARGV[2], 'start_at', ARGV[3], 'end_at', ARGV[4],
	'reminder_sent', ARGV[5], 'created_at', ARGV[6], 'updated_at', ARGV[7])
if ARGV[5] == '0' then
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
end
return 1
`)

var unclaimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'reminder_sent', '0', 'updated_at', ARGV[1])
redis.call('ZADD', KEYS[2], redis.call('HGET', KEYS[1], 'start_at'), ARGV[2])
return 1
`)

// OpenRedis parses url, connects with retries and returns a repository.
func OpenRedis(ctx context.Context, url, prefix string, retryAttempts int, retryInterval time.Duration) (*RedisRepo, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}
	for i := range retryAttempts {
		client := redis.NewClient(opt)
		if err = client.Ping(ctx).Err(); err == nil {
			return NewRedis(client, prefix), nil
		}
		_ = client.Close()
		if i+1 == retryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
	return nil, fmt.Errorf("redis: connect: %w", err)
}

// NewRedis wraps an existing client. The caller may share the client.
func NewRedis(client redis.UniversalClient, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "quiet_hours"
	}
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) blockKey(id string) string { return r.prefix + ":block:" + id }
func (r *RedisRepo) pendingKey() string        { return r.prefix + ":pending" }

func (r *RedisRepo) Close() error                   { return r.client.Close() }
func (r *RedisRepo) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisRepo) InsertBlock(ctx context.Context, b *domain.TimeBlock) error {
	if b == nil {
		return ErrNilBlock
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	var endAt int64
	if !b.EndAt.IsZero() {
		endAt = toMillis(b.EndAt)
	}
	inserted, err := insertScript.Run(ctx, r.client,
		[]string{r.blockKey(b.ID), r.pendingKey()},
		b.ID, b.OwnerContact, toMillis(b.StartAt), endAt,
		boolToInt(b.ReminderSent), toMillis(created), toMillis(updated),
	).Int()
	if err != nil {
		return fmt.Errorf("redis: insert block: %w", err)
	}
	if inserted == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *RedisRepo) GetBlock(ctx context.Context, id string) (*domain.TimeBlock, error) {
	m, err := r.client.HGetAll(ctx, r.blockKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get block: %w", err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	b, err := blockFromHash(m)
	if err != nil {
		return nil, fmt.Errorf("redis: get block: %w", err)
	}
	return &b, nil
}

func (r *RedisRepo) FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.pendingKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(toMillis(from), 10),
		Max: strconv.FormatInt(toMillis(to), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: find due: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, r.blockKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: find due: %w", err)
	}

	res := make([]domain.TimeBlock, 0, len(ids))
	for _, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			continue // deleted between index read and fetch
		}
		b, err := blockFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("redis: find due: %w", err)
		}
		if b.ReminderSent {
			continue
		}
		res = append(res, b)
	}
	return res, nil
}

func (r *RedisRepo) TryClaim(ctx context.Context, id string) (domain.TimeBlock, bool, error) {
	raw, err := claimScript.Run(ctx, r.client,
		[]string{r.blockKey(id), r.pendingKey()},
		toMillis(time.Now()), id,
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return domain.TimeBlock{}, false, nil
	}
	if err != nil {
		return domain.TimeBlock{}, false, fmt.Errorf("redis: try claim: %w", err)
	}

	m := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		m[raw[i]] = raw[i+1]
	}
	b, err := blockFromHash(m)
	if err != nil {
		return domain.TimeBlock{}, false, fmt.Errorf("redis: try claim: %w", err)
	}
	return b, true, nil
}

func (r *RedisRepo) Unclaim(ctx context.Context, id string) error {
	err := unclaimScript.Run(ctx, r.client,
		[]string{r.blockKey(id), r.pendingKey()},
		toMillis(time.Now()), id,
	).Err()
	if err != nil {
		return fmt.Errorf("redis: unclaim: %w", err)
	}
	return nil
}

func blockFromHash(m map[string]string) (domain.TimeBlock, error) {
	ms := func(key string) (int64, error) {
		v, err := strconv.ParseInt(m[key], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", key, err)
		}
		return v, nil
	}

	start, err := ms("start_at")
	if err != nil {
		return domain.TimeBlock{}, err
	}
	end, err := ms("end_at")
	if err != nil {
		return domain.TimeBlock{}, err
	}
	created, err := ms("created_at")
	if err != nil {
		return domain.TimeBlock{}, err
	}
	updated, err := ms("updated_at")
	if err != nil {
		return domain.TimeBlock{}, err
	}

	b := domain.TimeBlock{
		ID:           m["id"],
		OwnerContact: m["owner_contact"],
		StartAt:      fromMillis(start),
		ReminderSent: m["reminder_sent"] == "1",
		CreatedAt:    fromMillis(created),
		UpdatedAt:    fromMillis(updated),
	}
	if end != 0 {
		b.EndAt = fromMillis(end)
	}
	return b, nil
}
