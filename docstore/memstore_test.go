package docstore

import (
	"context"
	"testing"
)

func TestMemoryStoreCloneOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Write(ctx, "k", "s1", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	rec.Value[0] = 99
	again, err := s.Read(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if again.Value[0] != 1 {
		t.Error("caller mutation leaked into the store")
	}
}

func TestMemoryStoreNamespaceSweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for key, session := range map[string]string{
		"s1-creds": "s1", "s1-pre-key-1": "s1", "s2-creds": "s2",
	} {
		if err := s.Write(ctx, key, session, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.DeleteNamespace(ctx, "s1", []string{"s1-creds"}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("len: got %d, want 2", s.Len())
	}
	if err := s.DeleteAllNamespace(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("len: got %d, want 1", s.Len())
	}
}
