package postgres

import (
	"context"
	"os"
	"testing"

	"liquidityCore/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("POOLCTL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POOLCTL_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if _, err := s.pool.Exec(ctx, `TRUNCATE pool_kv`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	storagetest.Run(t, s)
}
