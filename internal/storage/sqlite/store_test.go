package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"liquidityCore/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "pool.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	storagetest.Run(t, s)
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	storagetest.Run(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	value, err := s.Get(ctx, []byte{0x01, 0xff})
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(value) != "c" {
		t.Fatalf("value mismatch: %q", value)
	}
}
