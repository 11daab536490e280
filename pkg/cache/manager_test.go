package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis for unit tests, skipping when
// none is available. Integration tests run against a containerized Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManagerPanicsOnNilClient(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManagerSetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Source: "zotero:2258643", Endpoint: "/groups/2258643/items"}
	entry := &Entry{
		Data:       []byte(`[{"key": "ABCD1234"}]`),
		Version:    1234,
		StatusCode: http.StatusOK,
		Expires:    time.Now().Add(5 * time.Minute),
		CachedAt:   time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Error("body not preserved through cache")
	}
	if got.Version != 1234 {
		t.Errorf("Version = %d, want 1234", got.Version)
	}
}

func TestManagerGetMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), Key{Endpoint: "/absent"})
	if err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManagerExpiredEntryNotCached(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Endpoint: "/stale"}
	entry := &Entry{
		Data:    []byte(`[]`),
		Expires: time.Now().Add(-1 * time.Minute),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss for expired entry", err)
	}
}

func TestManagerDelete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Endpoint: "/items"}
	entry := &Entry{
		Data:    []byte(`[]`),
		Expires: time.Now().Add(5 * time.Minute),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get() error = %v, want ErrCacheMiss after delete", err)
	}
}

func TestManagerRefresh(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Endpoint: "/items"}
	entry := &Entry{
		Data:    []byte(`[]`),
		Version: 7,
		Expires: time.Now().Add(10 * time.Second),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	newExpires := time.Now().Add(5 * time.Minute)
	if err := manager.Refresh(ctx, key, newExpires); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.TTL() < time.Minute {
		t.Errorf("TTL = %v, refresh did not extend expiry", got.TTL())
	}
	if got.Version != 7 {
		t.Errorf("Version = %d, refresh must not change the entry body", got.Version)
	}
}
