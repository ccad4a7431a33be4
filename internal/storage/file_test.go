package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "notigate/pkg/logx"
)

func openFileStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "notigate.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileStoreInboxSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openFileStore(t, dir)
	for _, id := range []string{"a", "b", "c"} {
		it := Item{ID: id, Type: "kudos", Title: "t-" + id, DeliveredAt: time.Now()}
		if err := st.AddNotification(ctx, it); err != nil {
			t.Fatalf("AddNotification(%s): %v", id, err)
		}
	}
	if err := st.MarkAllRead(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.AddNotification(ctx, Item{ID: "d", Type: "comment", DeliveredAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st = openFileStore(t, dir)
	defer st.Close()

	unread, err := st.UnreadCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unread != 1 {
		t.Fatalf("unread after replay = %d, want 1", unread)
	}
	recent, err := st.ListRecent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != "d" || recent[1].ID != "c" {
		t.Fatalf("ListRecent = %+v, want d then c", recent)
	}
}

func TestFileStorePreferencesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openFileStore(t, dir)
	defer st.Close()

	if _, ok, err := st.LoadPreferences(ctx); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v, want absent", ok, err)
	}
	raw := []byte(`{"max_per_hour":7}`)
	if err := st.SavePreferences(ctx, raw); err != nil {
		t.Fatal(err)
	}
	got, ok, err := st.LoadPreferences(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadPreferences: ok=%v err=%v", ok, err)
	}
	if string(got) != string(raw) {
		t.Fatalf("LoadPreferences = %s, want %s", got, raw)
	}
}

func TestFileStoreAppendComment(t *testing.T) {
	dir := t.TempDir()
	st := openFileStore(t, dir)
	defer st.Close()

	c := Comment{ID: "c1", Subject: "u1", Body: "nice pace"}
	if err := st.AppendComment(context.Background(), c); err != nil {
		t.Fatal(err)
	}
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q: expected nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
