package kv

import (
	"context"
	"errors"
	"testing"
)

// runStoreSuite checks the Store contract shared by every driver.
func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		if err := s.Set(ctx, "k1", []byte("v1"), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != "v1" {
			t.Errorf("Get = %q, want %q", got, "v1")
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		_ = s.Set(ctx, "k2", []byte("a"), 0)
		_ = s.Set(ctx, "k2", []byte("b"), 0)
		got, _ := s.Get(ctx, "k2")
		if string(got) != "b" {
			t.Errorf("Get = %q, want %q", got, "b")
		}
	})

	t.Run("create if absent", func(t *testing.T) {
		ok, err := s.CompareAndSwap(ctx, "k3", nil, []byte("first"))
		if err != nil || !ok {
			t.Fatalf("first CompareAndSwap = %v, %v; want true, nil", ok, err)
		}
		ok, err = s.CompareAndSwap(ctx, "k3", nil, []byte("second"))
		if err != nil || ok {
			t.Fatalf("second CompareAndSwap = %v, %v; want false, nil", ok, err)
		}
		got, _ := s.Get(ctx, "k3")
		if string(got) != "first" {
			t.Errorf("Get = %q, want %q", got, "first")
		}
	})

	t.Run("swap on matching value", func(t *testing.T) {
		_ = s.Set(ctx, "k4", []byte("v1"), 0)

		ok, err := s.CompareAndSwap(ctx, "k4", []byte("stale"), []byte("v2"))
		if err != nil || ok {
			t.Fatalf("stale CompareAndSwap = %v, %v; want false, nil", ok, err)
		}
		ok, err = s.CompareAndSwap(ctx, "k4", []byte("v1"), []byte("v2"))
		if err != nil || !ok {
			t.Fatalf("CompareAndSwap = %v, %v; want true, nil", ok, err)
		}
		got, _ := s.Get(ctx, "k4")
		if string(got) != "v2" {
			t.Errorf("Get = %q, want %q", got, "v2")
		}
	})

	t.Run("swap on missing key fails", func(t *testing.T) {
		ok, err := s.CompareAndSwap(ctx, "k5", []byte("x"), []byte("y"))
		if err != nil || ok {
			t.Fatalf("CompareAndSwap = %v, %v; want false, nil", ok, err)
		}
		if _, err := s.Get(ctx, "k5"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
