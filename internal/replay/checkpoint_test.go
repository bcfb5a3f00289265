package replay

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ns := storage.PoolID(common.HexToAddress("0x01"), common.HexToAddress("0x02"), 3000, 60)
	cps := NewCheckpointStore(store, ns, true)

	if _, ok, err := cps.Load(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := cps.Save(ctx, model.LogRecord{BlockNumber: 12, LogIndex: 3}, 7); err != nil {
		t.Fatalf("save: %v", err)
	}
	cp, ok, err := cps.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if cp.BlockNumber != 12 || cp.LogIndex != 3 || cp.Logs != 7 || cp.UpdatedAt == "" {
		t.Fatalf("checkpoint mismatch: %+v", cp)
	}

	other := NewCheckpointStore(store, storage.PoolID(common.HexToAddress("0x01"), common.HexToAddress("0x02"), 500, 10), true)
	if _, ok, _ := other.Load(ctx); ok {
		t.Fatalf("checkpoint leaked across pools")
	}
}

func TestCheckpointDisabled(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	cps := NewCheckpointStore(store, storage.Namespace{}, false)
	if err := cps.Save(ctx, model.LogRecord{BlockNumber: 1}, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("disabled checkpoint wrote to the store")
	}
}

func TestCheckpointCovers(t *testing.T) {
	cp := Checkpoint{BlockNumber: 10, LogIndex: 4}
	cases := []struct {
		block, index uint64
		want         bool
	}{
		{9, 99, true},
		{10, 3, true},
		{10, 4, true},
		{10, 5, false},
		{11, 0, false},
	}
	for _, tc := range cases {
		if got := cp.Covers(model.LogRecord{BlockNumber: tc.block, LogIndex: tc.index}); got != tc.want {
			t.Fatalf("covers(%d,%d) = %v", tc.block, tc.index, got)
		}
	}
}
