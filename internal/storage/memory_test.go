package storage_test

import (
	"testing"

	"liquidityCore/internal/storage"
	"liquidityCore/internal/storage/storagetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storagetest.Run(t, storage.NewMemoryStore())
}
