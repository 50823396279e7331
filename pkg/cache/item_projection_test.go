package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ghuser/itemflow/pkg/config"
)

func newTestConfig(url string) *config.Config {
	return &config.Config{RedisURL: url}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(newTestConfig("not-a-valid-url"))
	if err == nil {
		t.Fatal("expected error for invalid URL, got nil")
	}
}

func TestNewRedisClient_UnreachableHost(t *testing.T) {
	_, err := NewRedisClient(newTestConfig("redis://localhost:19999"))
	if err == nil {
		t.Fatal("expected error when Redis is unreachable, got nil")
	}
}

func TestIsMiss(t *testing.T) {
	if !IsMiss(redis.Nil) {
		t.Fatal("redis.Nil is a miss")
	}
	if !IsMiss(fmt.Errorf("projection get: %w", redis.Nil)) {
		t.Fatal("wrapped redis.Nil is a miss")
	}
	if IsMiss(errors.New("connection refused")) {
		t.Fatal("other errors are not misses")
	}
}

// Integration tests skipped unless REDIS_URL is set.
func TestItemProjectionIntegration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set; skipping integration tests")
	}

	rc, err := NewRedisClient(newTestConfig(redisURL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close() //nolint:errcheck

	ctx := context.Background()
	proj := NewItemProjection(rc)

	snapshot := func(id uuid.UUID, name string, updatedAt time.Time) *ProjectedItem {
		return &ProjectedItem{
			ID:        id,
			Name:      name,
			CreatedAt: updatedAt.Add(-time.Minute),
			UpdatedAt: updatedAt,
		}
	}

	t.Run("upsert then get round trips", func(t *testing.T) {
		id := uuid.New()
		now := time.Now().UTC().Truncate(time.Millisecond)

		applied, err := proj.Upsert(ctx, snapshot(id, "Widget", now))
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if !applied {
			t.Fatal("first upsert must apply")
		}

		got, err := proj.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "Widget" || !got.UpdatedAt.Equal(now) {
			t.Fatalf("round trip mismatch: %+v", got)
		}
	})

	t.Run("stale snapshot is a no-op", func(t *testing.T) {
		id := uuid.New()
		now := time.Now().UTC()

		if _, err := proj.Upsert(ctx, snapshot(id, "Fresh", now)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		applied, err := proj.Upsert(ctx, snapshot(id, "Stale", now.Add(-time.Second)))
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if applied {
			t.Fatal("stale snapshot must not apply")
		}

		got, err := proj.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "Fresh" {
			t.Fatalf("projection regressed to %q", got.Name)
		}
	})

	t.Run("remove tombstones the item", func(t *testing.T) {
		id := uuid.New()
		now := time.Now().UTC()

		if _, err := proj.Upsert(ctx, snapshot(id, "Doomed", now)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := proj.Remove(ctx, id); err != nil {
			t.Fatalf("remove: %v", err)
		}

		if _, err := proj.Get(ctx, id); !IsMiss(err) {
			t.Fatalf("expected a miss after remove, got %v", err)
		}

		// A late snapshot must not resurrect the item inside the TTL window.
		applied, err := proj.Upsert(ctx, snapshot(id, "Zombie", now.Add(time.Second)))
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if applied {
			t.Fatal("tombstoned item must not be resurrected")
		}
	})

	t.Run("remove of an absent item succeeds", func(t *testing.T) {
		if err := proj.Remove(ctx, uuid.New()); err != nil {
			t.Fatalf("remove: %v", err)
		}
	})

	t.Run("receive counter increments and forgets", func(t *testing.T) {
		counter := NewReceiveCounter(rc)
		msgID := uuid.NewString()

		for want := 1; want <= 3; want++ {
			got, err := counter.Incr(ctx, msgID)
			if err != nil {
				t.Fatalf("incr: %v", err)
			}
			if got != want {
				t.Fatalf("count = %d, want %d", got, want)
			}
		}

		if err := counter.Forget(ctx, msgID); err != nil {
			t.Fatalf("forget: %v", err)
		}
		if got, _ := counter.Incr(ctx, msgID); got != 1 {
			t.Fatalf("count after forget = %d, want 1", got)
		}
	})
}
