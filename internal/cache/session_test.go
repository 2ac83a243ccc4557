package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/session"
)

func newTestSessionStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *SessionStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewSessionStore(NewWithClient(client), ttl)
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	_, store := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	sess := session.New("abc")
	sess.SetExternal(&session.External{Provider: "google", Subject: "s1", EmailAddress: "ada@example.com"})
	sess.ObserveExternal()
	if err := sess.Authenticate("ada@example.com", session.SourceFederated); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if sess.Dirty() {
		t.Error("Save() should mark the session clean")
	}

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	identity, ok := got.Identity()
	if !ok || identity != "ada@example.com" {
		t.Errorf("Identity() = %q, %v", identity, ok)
	}
	if got.Source() != session.SourceFederated {
		t.Errorf("Source() = %v, want federated", got.Source())
	}
	if ext := got.External(); ext == nil || ext.Email() != "ada@example.com" {
		t.Errorf("External() = %v", ext)
	}
}

func TestSessionStore_GetMissing(t *testing.T) {
	_, store := newTestSessionStore(t, time.Minute)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_CorruptedEntry(t *testing.T) {
	mr, store := newTestSessionStore(t, time.Minute)

	if err := mr.Set(sessionPrefix+"bad", "{not json"); err != nil {
		t.Fatalf("mr.Set: %v", err)
	}
	if _, err := store.Get(context.Background(), "bad"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	// Identity without a source is not a valid record.
	if err := mr.Set(sessionPrefix+"half", `{"id":"half","identity":"ada","source":"none"}`); err != nil {
		t.Fatalf("mr.Set: %v", err)
	}
	if _, err := store.Get(context.Background(), "half"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_IdleExpiry(t *testing.T) {
	mr, store := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, session.New("idle")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mr.FastForward(45 * time.Second)
	if err := store.Touch(ctx, "idle"); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	mr.FastForward(45 * time.Second)
	if _, err := store.Get(ctx, "idle"); err != nil {
		t.Fatalf("Get() after touch error = %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "idle"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get() after idle window error = %v, want ErrNotFound", err)
	}
	if err := store.Touch(ctx, "idle"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Touch() on reclaimed record error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	mr, store := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, session.New("gone")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists(sessionPrefix + "gone") {
		t.Error("key should be removed")
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}
