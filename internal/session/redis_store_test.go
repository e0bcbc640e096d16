package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T, tabID string) (*RedisStorage, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStorage("redis://"+s.Addr(), tabID)
	if err != nil {
		t.Fatalf("failed to create redis storage: %v", err)
	}
	return store, s
}

func TestNewRedisStorage(t *testing.T) {
	store, s := setupTestRedis(t, "tab-1")
	defer s.Close()
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStorageBadURL(t *testing.T) {
	if _, err := NewRedisStorage("not a url", "tab-1"); err == nil {
		t.Fatal("expected error for bad url")
	}
}

func TestRedisSetGetDelete(t *testing.T) {
	store, s := setupTestRedis(t, "tab-1")
	defer s.Close()
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, StorageKey, `{"token":"t"}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !s.Exists("tab:tab-1:" + StorageKey) {
		t.Fatalf("expected tab-scoped key, keys=%v", s.Keys())
	}

	value, ok, err := store.Get(ctx, StorageKey)
	if err != nil || !ok {
		t.Fatalf("Get() = %q, %v, %v", value, ok, err)
	}
	if value != `{"token":"t"}` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := store.Delete(ctx, StorageKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, StorageKey); ok {
		t.Fatal("expected value to be gone after Delete")
	}
}

func TestRedisValueExpires(t *testing.T) {
	store, s := setupTestRedis(t, "tab-1")
	defer s.Close()
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, StorageKey, "v", time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	if _, ok, err := store.Get(ctx, StorageKey); ok || err != nil {
		t.Fatalf("expected expired value, ok=%v err=%v", ok, err)
	}
}

func TestRedisSetWithoutTTLStillExpires(t *testing.T) {
	store, s := setupTestRedis(t, "tab-1")
	defer s.Close()
	defer store.Close()

	if err := store.Set(context.Background(), StorageKey, "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := s.TTL("tab:tab-1:" + StorageKey); ttl != defaultTTL {
		t.Fatalf("TTL = %v, want %v", ttl, defaultTTL)
	}
}

func TestRedisTabIsolation(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	first, err := NewRedisStorage("redis://"+s.Addr(), "tab-a")
	if err != nil {
		t.Fatalf("NewRedisStorage: %v", err)
	}
	defer first.Close()
	second, err := NewRedisStorage("redis://"+s.Addr(), "tab-b")
	if err != nil {
		t.Fatalf("NewRedisStorage: %v", err)
	}
	defer second.Close()
	ctx := context.Background()

	if err := first.Set(ctx, StorageKey, "a", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := second.Get(ctx, StorageKey); ok {
		t.Fatal("tab-b must not see tab-a's credential")
	}
}

func TestRedisPurgeRemovesOnlyThisTab(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	closing, err := NewRedisStorage("redis://"+s.Addr(), "tab-a")
	if err != nil {
		t.Fatalf("NewRedisStorage: %v", err)
	}
	defer closing.Close()
	other, err := NewRedisStorage("redis://"+s.Addr(), "tab-b")
	if err != nil {
		t.Fatalf("NewRedisStorage: %v", err)
	}
	defer other.Close()
	ctx := context.Background()

	for _, key := range []string{StorageKey, "scratch"} {
		if err := closing.Set(ctx, key, "a", time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := other.Set(ctx, StorageKey, "b", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := closing.Purge(ctx); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if _, ok, _ := closing.Get(ctx, StorageKey); ok {
		t.Fatal("credential survived Purge")
	}
	if len(s.Keys()) != 1 || !s.Exists("tab:tab-b:"+StorageKey) {
		t.Fatalf("keys after purge = %v, want only tab-b", s.Keys())
	}
	if err := closing.Purge(ctx); err != nil {
		t.Fatalf("Purge on an empty tab failed: %v", err)
	}
}

func TestMemoryStorageExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryStorage()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "k", "v", time.Minute)
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire at its deadline")
	}

	_ = m.Set(ctx, "forever", "v", 0)
	now = now.Add(24 * time.Hour)
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Fatal("ttl <= 0 should keep the entry")
	}
}
