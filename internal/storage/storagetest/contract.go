// Package storagetest checks a storage.Store implementation against the store contract.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityCore/internal/storage"
)

// Run exercises get, ordered prefix iteration and batch application on an empty store.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, []byte("missing"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	batch := &storage.Batch{}
	batch.Put([]byte{0x01, 0x02}, []byte("b"))
	batch.Put([]byte{0x01, 0x01}, []byte("a"))
	batch.Put([]byte{0x01, 0xff}, []byte("c"))
	batch.Put([]byte{0x02, 0x00}, []byte("other"))
	batch.Put([]byte{0x01, 0x03}, []byte("gone"))
	batch.Delete([]byte{0x01, 0x03})
	require.NoError(t, s.Apply(ctx, batch))

	value, err := s.Get(ctx, []byte{0x01, 0x01})
	require.NoError(t, err)
	require.Equal(t, []byte("a"), value)

	_, err = s.Get(ctx, []byte{0x01, 0x03})
	require.ErrorIs(t, err, storage.ErrNotFound)

	var keys [][]byte
	var values []string
	err = s.Iterate(ctx, []byte{0x01}, func(key, value []byte) error {
		keys = append(keys, key)
		values = append(values, string(value))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x01, 0x01}, {0x01, 0x02}, {0x01, 0xff}}, keys)
	require.Equal(t, []string{"a", "b", "c"}, values)

	overwrite := &storage.Batch{}
	overwrite.Put([]byte{0x01, 0x01}, []byte("a2"))
	overwrite.Delete([]byte{0x02, 0x00})
	require.NoError(t, s.Apply(ctx, overwrite))

	value, err = s.Get(ctx, []byte{0x01, 0x01})
	require.NoError(t, err)
	require.Equal(t, []byte("a2"), value)
	_, err = s.Get(ctx, []byte{0x02, 0x00})
	require.ErrorIs(t, err, storage.ErrNotFound)

	stop := errors.New("stop")
	visited := 0
	err = s.Iterate(ctx, []byte{0x01}, func(_, _ []byte) error {
		visited++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, visited)

	require.NoError(t, s.Apply(ctx, &storage.Batch{}))
}
