package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	c := NewMemory("t", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("get = %q, want v", got)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("get after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryTakeIsOneShot(t *testing.T) {
	c := NewMemory("", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "state", []byte("google"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Take(ctx, "state")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if string(got) != "google" {
		t.Fatalf("take = %q, want google", got)
	}
	if _, err := c.Take(ctx, "state"); !IsNotFound(err) {
		t.Fatalf("second take = %v, want ErrNotFound", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory("", time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("get expired = %v, want ErrNotFound", err)
	}
}
