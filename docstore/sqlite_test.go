package docstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"
)

func tempSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"), "baileys-auth")
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Disconnect(context.Background()) })
	return s
}

func TestSQLiteConnectIdempotent(t *testing.T) {
	s := tempSQLite(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteReadAbsent(t *testing.T) {
	s := tempSQLite(t)
	rec, err := s.Read(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("expected absent, got %+v", rec)
	}
}

func TestSQLiteWriteReadDelete(t *testing.T) {
	s := tempSQLite(t)
	ctx := context.Background()

	if err := s.Write(ctx, "s1-pre-key-1", "s1", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Read(ctx, "s1-pre-key-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Session != "s1" || !bytes.Equal(rec.Value, []byte(`{"v":1}`)) {
		t.Errorf("record: %+v", rec)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped")
	}

	if err := s.Delete(ctx, "s1-pre-key-1"); err != nil {
		t.Fatal(err)
	}
	rec, err = s.Read(ctx, "s1-pre-key-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Error("expected record gone")
	}

	// Deleting an absent key is a no-op.
	if err := s.Delete(ctx, "s1-pre-key-1"); err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteUpsertKeepsCreatedAt(t *testing.T) {
	s := tempSQLite(t)
	ctx := context.Background()

	if err := s.Write(ctx, "k", "s1", []byte("a")); err != nil {
		t.Fatal(err)
	}
	first, err := s.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := s.Write(ctx, "k", "s1", []byte("b")); err != nil {
		t.Fatal(err)
	}
	second, err := s.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(second.Value, []byte("b")) {
		t.Errorf("value not overwritten: %q", second.Value)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("createdAt changed on upsert: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updatedAt not advanced: %v vs %v", second.UpdatedAt, first.UpdatedAt)
	}
}

func TestSQLiteNamespaceSweep(t *testing.T) {
	s := tempSQLite(t)
	ctx := context.Background()

	seed := map[string]string{
		"s1-creds":       "s1",
		"s1-pre-key-1":   "s1",
		"s1-session-abc": "s1",
		"s2-pre-key-1":   "s2",
	}
	for key, session := range seed {
		if err := s.Write(ctx, key, session, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.DeleteNamespace(ctx, "s1", []string{"s1-creds"}); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]bool{
		"s1-creds":       true,
		"s1-pre-key-1":   false,
		"s1-session-abc": false,
		"s2-pre-key-1":   true,
	} {
		rec, err := s.Read(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if got := rec != nil; got != want {
			t.Errorf("%s: present=%v, want %v", key, got, want)
		}
	}

	if err := s.DeleteAllNamespace(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Read(ctx, "s1-creds")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Error("creds should be gone after full sweep")
	}
	rec, err = s.Read(ctx, "s2-pre-key-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Error("other session must be untouched")
	}
}

func TestSQLiteReconnectAfterDisconnect(t *testing.T) {
	s := tempSQLite(t)
	ctx := context.Background()

	if err := s.Write(ctx, "k", "s1", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	// Operations against a disconnected store fail; Connect restores them.
	if _, err := s.Read(ctx, "k"); err == nil {
		t.Fatal("expected error while disconnected")
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || string(rec.Value) != "v" {
		t.Fatalf("record lost across reconnect: %+v", rec)
	}
}
