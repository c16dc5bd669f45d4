package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis: %v", err)
	}
	return NewTracker(rdb)
}

func TestTrackerCountsConnections(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	user := "user-" + uuid.NewString()

	if n, err := tr.Connections(ctx, user); err != nil || n != 0 {
		t.Fatalf("Connections before connect = %d, %v", n, err)
	}
	for _, conn := range []string{"c1", "c2", "c2"} {
		if err := tr.Add(ctx, user, conn); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := tr.Connections(ctx, user); err != nil || n != 2 {
		t.Fatalf("Connections = %d, %v", n, err)
	}

	for _, conn := range []string{"c1", "c2", "c2"} {
		if err := tr.Remove(ctx, user, conn); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := tr.Connections(ctx, user); err != nil || n != 0 {
		t.Fatalf("Connections after disconnect = %d, %v", n, err)
	}
}

func TestRefreshExtendsExpiry(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	user := "user-" + uuid.NewString()
	defer tr.redis.Del(ctx, key(user))

	if err := tr.Add(ctx, user, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := tr.redis.Expire(ctx, key(user), time.Minute).Err(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Refresh(ctx, user, "c1"); err != nil {
		t.Fatal(err)
	}
	left, err := tr.redis.TTL(ctx, key(user)).Result()
	if err != nil {
		t.Fatal(err)
	}
	if left <= time.Minute {
		t.Fatalf("ttl after refresh = %s, want close to %s", left, ttl)
	}

	// An expired set is recreated by the next refresh.
	if err := tr.redis.Del(ctx, key(user)).Err(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Refresh(ctx, user, "c1"); err != nil {
		t.Fatal(err)
	}
	if n, err := tr.Connections(ctx, user); err != nil || n != 1 {
		t.Fatalf("Connections after refresh = %d, %v", n, err)
	}
}
