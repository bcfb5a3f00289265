// Package storage defines the keyed store the pool engine persists into and the sinks
// that receive its events.
package storage

import (
	"context"
	"errors"

	"liquidityCore/internal/model"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is an ordered key/value store. Apply must be atomic: either every operation of
// the batch is visible afterwards or none is.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
	Apply(ctx context.Context, batch *Batch) error
	Close() error
}

// EventSink receives pool events after the operation that produced them has committed.
type EventSink interface {
	PutEventBatch(events []model.TypedEvent) error
}

// Op is one write of a Batch. A nil Value with Delete set removes the key.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch collects writes for Store.Apply. Later writes to a key win.
type Batch struct {
	ops []Op
}

func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Key: clone(key), Value: clone(value)})
}

func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Key: clone(key), Delete: true})
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns the queued writes in order.
func (b *Batch) Ops() []Op {
	return b.ops
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// PrefixEnd returns the smallest key greater than every key starting with prefix, or
// nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Sinks fans a batch out to every sink in order and stops at the first error.
type Sinks []EventSink

func (s Sinks) PutEventBatch(events []model.TypedEvent) error {
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.PutEventBatch(events); err != nil {
			return err
		}
	}
	return nil
}
