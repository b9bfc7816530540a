package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedis(NewRedisClient(RedisConfig{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_Contract(t *testing.T) {
	r, _ := newTestRedis(t)
	runStoreSuite(t, r)
}

func TestRedis_TTL(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	if err := r.Set(ctx, "price:MSFT", []byte("412.5"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("price:MSFT"); ttl != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", ttl)
	}

	mr.FastForward(5 * time.Minute)
	if _, err := r.Get(ctx, "price:MSFT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry error = %v, want ErrNotFound", err)
	}
}

func TestRedis_SwapClearsTTL(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	_ = r.Set(ctx, "k", []byte("a"), time.Minute)
	ok, err := r.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"))
	if err != nil || !ok {
		t.Fatalf("CompareAndSwap = %v, %v; want true, nil", ok, err)
	}
	if ttl := mr.TTL("k"); ttl != 0 {
		t.Errorf("TTL after swap = %v, want none", ttl)
	}
}

func TestRedis_Unavailable(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := r.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get error = %v, want ErrUnavailable", err)
	}
	if err := r.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Ping error = %v, want ErrUnavailable", err)
	}
}
