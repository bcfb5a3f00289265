package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

var checkpointID = []byte("replay-checkpoint")

// Checkpoint is the last log applied to the engine. Logs counts every log handled up
// to and including it, across runs.
type Checkpoint struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Logs        uint64 `json:"logs"`
	UpdatedAt   string `json:"updated_at"`
}

// Covers reports whether log was applied at or before the checkpoint.
func (c Checkpoint) Covers(log model.LogRecord) bool {
	if log.BlockNumber != c.BlockNumber {
		return log.BlockNumber < c.BlockNumber
	}
	return log.LogIndex <= c.LogIndex
}

// CheckpointStore keeps the checkpoint next to the pool records it describes.
type CheckpointStore struct {
	store   storage.Store
	key     []byte
	enabled bool
}

func NewCheckpointStore(store storage.Store, ns storage.Namespace, enabled bool) *CheckpointStore {
	return &CheckpointStore{
		store:   store,
		key:     ns.Key(storage.KindMeta, checkpointID),
		enabled: enabled && store != nil,
	}
}

func (c *CheckpointStore) Load(ctx context.Context) (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := c.store.Get(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := sonnet.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, true, nil
}

// Save records log as the last one handled. total is the running log count.
func (c *CheckpointStore) Save(ctx context.Context, log model.LogRecord, total uint64) error {
	if !c.enabled {
		return nil
	}

	cp := Checkpoint{
		BlockNumber: log.BlockNumber,
		LogIndex:    log.LogIndex,
		Logs:        total,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := sonnet.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	var batch storage.Batch
	batch.Put(c.key, data)
	if err := c.store.Apply(ctx, &batch); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
