package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func TestProgressStoreRoundTrip(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewProgressStore(client, time.Minute)

	id, err := store.Begin(context.Background(), "parsing")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty operation id")
	}

	if err := store.Update(context.Background(), Progress{
		OperationID: id,
		Stage:       "inserting",
		Processed:   40,
		Total:       120,
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stage != "inserting" || got.Processed != 40 || got.Total != 120 {
		t.Fatalf("unexpected progress: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be set")
	}
}

func TestProgressStoreGetUnknownID(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewProgressStore(client, time.Minute)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestProgressStoreExpires(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewProgressStore(client, time.Second)

	id, err := store.Begin(context.Background(), "parsing")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := store.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry got %v", err)
	}
}

func TestProgressStoreUpdateRequiresID(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewProgressStore(client, time.Minute)

	if err := store.Update(context.Background(), Progress{Stage: "x"}); err == nil {
		t.Fatal("expected error for missing operation id")
	}
}
