package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScopeLockAcquireRelease(t *testing.T) {
	client, _ := newTestRedis(t)
	lock := NewScopeLock(client, time.Minute)
	key := UploadLockKey("ABC", "April", 2024)

	token, err := lock.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected owner token")
	}

	if _, err := lock.Acquire(context.Background(), key); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld got %v", err)
	}

	if err := lock.Release(context.Background(), key, token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := lock.Acquire(context.Background(), key); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestScopeLockReleaseWrongToken(t *testing.T) {
	client, _ := newTestRedis(t)
	lock := NewScopeLock(client, time.Minute)
	key := UploadLockKey("abc", "april", 2024)

	token, err := lock.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := lock.Release(context.Background(), key, "other-token"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	// Lock still held by the original owner.
	if _, err := lock.Acquire(context.Background(), key); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld got %v", err)
	}
	if err := lock.Release(context.Background(), key, token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}

func TestScopeLockExpires(t *testing.T) {
	client, mr := newTestRedis(t)
	lock := NewScopeLock(client, time.Second)
	key := UploadLockKey("abc", "april", 2024)

	if _, err := lock.Acquire(context.Background(), key); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, err := lock.Acquire(context.Background(), key); err != nil {
		t.Fatalf("expected acquire after expiry, got %v", err)
	}
}

func TestUploadLockKeyNormalises(t *testing.T) {
	if got, want := UploadLockKey(" ABC ", " April ", 2024), "upload:abc:april:2024:lock"; got != want {
		t.Fatalf("UploadLockKey = %q want %q", got, want)
	}
}
