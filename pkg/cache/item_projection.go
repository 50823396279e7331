package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	itemViewKeyPrefix = "item:view"
	itemTombKeyPrefix = "item:tomb"

	// TombstoneTTL bounds how long a deletion marker survives. Events for
	// the same item arriving out of order inside this window cannot
	// resurrect a deleted projection.
	TombstoneTTL = 24 * time.Hour
)

// ProjectedItem is the denormalized read model kept in Redis, maintained by
// the event consumer and read through by the api process.
type ProjectedItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// upsertScript applies a snapshot only when it is at least as fresh as the
// stored one and no tombstone exists. Runs atomically so concurrent
// consumers applying the same or older snapshots cannot interleave.
// Returns 1 when the hash was written, 0 when the call was a no-op.
var upsertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
local cur = redis.call("HGET", KEYS[1], "updated_at_ns")
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1],
	"id", ARGV[2],
	"name", ARGV[3],
	"description", ARGV[4],
	"created_at", ARGV[5],
	"updated_at", ARGV[6],
	"updated_at_ns", ARGV[1])
return 1
`)

// removeScript deletes the projection and leaves a tombstone so late
// snapshots are ignored. Removing an absent projection is a no-op.
var removeScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1], "EX", ARGV[2])
return 1
`)

// ItemProjection stores the downstream item read model.
// All operations are idempotent and safe under concurrent application:
// re-applying the same snapshot, or applying snapshots out of order,
// converges to the state of the freshest snapshot or absence after delete.
type ItemProjection struct {
	client *RedisClient
}

// NewItemProjection returns an ItemProjection backed by the given client.
func NewItemProjection(r *RedisClient) *ItemProjection {
	return &ItemProjection{client: r}
}

// Upsert writes the snapshot unless a fresher one (or a tombstone) is
// already present. Returns true when the projection changed.
func (p *ItemProjection) Upsert(ctx context.Context, item *ProjectedItem) (bool, error) {
	res, err := upsertScript.Run(ctx, p.client.Client(),
		[]string{p.viewKey(item.ID), p.tombKey(item.ID)},
		item.UpdatedAt.UTC().UnixNano(),
		item.ID.String(),
		item.Name,
		item.Description,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return false, fmt.Errorf("projection upsert: %w", err)
	}
	return res == 1, nil
}

// Remove deletes the projection for itemID and records a tombstone.
// Removing an already-removed projection succeeds.
func (p *ItemProjection) Remove(ctx context.Context, itemID uuid.UUID) error {
	err := removeScript.Run(ctx, p.client.Client(),
		[]string{p.viewKey(itemID), p.tombKey(itemID)},
		time.Now().UTC().Format(time.RFC3339Nano),
		int(TombstoneTTL.Seconds()),
	).Err()
	if err != nil {
		return fmt.Errorf("projection remove: %w", err)
	}
	return nil
}

// Get retrieves the projected item, or redis.Nil when absent.
func (p *ItemProjection) Get(ctx context.Context, itemID uuid.UUID) (*ProjectedItem, error) {
	vals, err := p.client.Client().HGetAll(ctx, p.viewKey(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("projection get: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}
	return parseProjectedItem(vals)
}

func parseProjectedItem(vals map[string]string) (*ProjectedItem, error) {
	id, err := uuid.Parse(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("projection parse id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, vals["created_at"])
	if err != nil {
		return nil, fmt.Errorf("projection parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, vals["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("projection parse updated_at: %w", err)
	}
	return &ProjectedItem{
		ID:          id,
		Name:        vals["name"],
		Description: vals["description"],
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func (p *ItemProjection) viewKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", itemViewKeyPrefix, id)
}

func (p *ItemProjection) tombKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", itemTombKeyPrefix, id)
}

// IsMiss reports whether err marks a projection miss (key absent).
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// ReceiveCounter tracks how many times a queued message has been received,
// shared across worker instances. Implements events.ReceiveCounter.
type ReceiveCounter struct {
	client *RedisClient
	ttl    time.Duration
}

// NewReceiveCounter returns a Redis-backed receive counter. Counts expire
// after 24h so abandoned message ids do not accumulate.
func NewReceiveCounter(r *RedisClient) *ReceiveCounter {
	return &ReceiveCounter{client: r, ttl: 24 * time.Hour}
}

// Incr increments and returns the receive count for the message id.
func (c *ReceiveCounter) Incr(ctx context.Context, messageID string) (int, error) {
	key := "msg:recv:" + messageID
	pipe := c.client.Client().Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("receive count incr: %w", err)
	}
	return int(incr.Val()), nil
}

// Forget drops the count once the message reached a terminal state.
func (c *ReceiveCounter) Forget(ctx context.Context, messageID string) error {
	if err := c.client.Client().Del(ctx, "msg:recv:"+messageID).Err(); err != nil {
		return fmt.Errorf("receive count forget: %w", err)
	}
	return nil
}
