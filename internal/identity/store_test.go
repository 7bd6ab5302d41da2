package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"scanstream/internal/recognition"
)

type countingCreator struct {
	calls int
}

func (c *countingCreator) CreateAnonymousUser(context.Context) (recognition.User, error) {
	c.calls++
	return recognition.User{ID: "U1", APIKey: "anon-key"}, nil
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadMissing(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))
	if _, err := store.Load(context.Background(), "app"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveReplaces(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))
	ctx := context.Background()

	if err := store.Save(ctx, "app", recognition.User{ID: "U1", APIKey: "k1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "app", recognition.User{ID: "U2", APIKey: "k2"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	user, err := store.Load(ctx, "app")
	if err != nil || user.ID != "U2" {
		t.Fatalf("unexpected user %+v err=%v", user, err)
	}
	if err := store.Save(ctx, "app", recognition.User{ID: "U3"}); err == nil {
		t.Fatalf("expected error for user without api key")
	}
}

func TestResolverCreatesOnceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")
	creator := &countingCreator{}
	ctx := context.Background()

	first := openTestStore(t, path)
	user, err := (&Resolver{Store: first, Creator: creator, AppID: "app"}).Resolve(ctx)
	if err != nil || user.APIKey != "anon-key" {
		t.Fatalf("resolve: %+v %v", user, err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := openTestStore(t, path)
	user, err = (&Resolver{Store: second, Creator: creator, AppID: "app"}).Resolve(ctx)
	if err != nil || user.ID != "U1" {
		t.Fatalf("resolve after reopen: %+v %v", user, err)
	}
	if creator.calls != 1 {
		t.Fatalf("expected one creation, got %d", creator.calls)
	}
}

func TestResolverWithoutCreator(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))
	if _, err := (&Resolver{Store: store, AppID: "app"}).Resolve(context.Background()); err == nil {
		t.Fatalf("expected error without creator")
	}
}

func TestStorageKey(t *testing.T) {
	if got := StorageKey("abc"); got != "scanthng-abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))

	var mode string
	if err := store.sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal, got %q", mode)
	}

	var timeout int
	if err := store.sqlDB.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("expected busy timeout 5000, got %d", timeout)
	}
}
