package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient connects to TICKETDESK_TEST_REDIS_ADDR, skipping when unset.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TICKETDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TICKETDESK_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisViewLockReleasedOnlyByHolder(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	store := NewRedisViewStore(client)
	sid := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(ctx, lockKeyPrefix+viewKey(sid, "1")) })

	stale, ok, err := store.Lock(ctx, sid, "1", 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("Lock = %v, %v", ok, err)
	}
	time.Sleep(100 * time.Millisecond)
	current, ok, err := store.Lock(ctx, sid, "1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("takeover Lock = %v, %v", ok, err)
	}

	if err := store.Unlock(ctx, sid, "1", stale); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Lock(ctx, sid, "1", time.Minute); ok {
		t.Fatal("stale token released the current lock")
	}
	if err := store.Unlock(ctx, sid, "1", current); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Lock(ctx, sid, "1", time.Minute); !ok {
		t.Fatal("lock should be free after the holder released it")
	}
}
