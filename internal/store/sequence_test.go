package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/testutil"
)

func TestSequencer(t *testing.T) {
	s := newSequencer(4)
	assert.Equal(t, int64(5), s.reserve())
	assert.Equal(t, int64(5), s.reserve(), "an uncommitted reservation is handed out again")

	s.commit(5)
	assert.Equal(t, int64(5), s.issued())
	assert.Equal(t, int64(6), s.reserve())

	s.commit(3)
	assert.Equal(t, int64(5), s.issued())
}

func TestFailedWriteLeavesNoGap(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "seq.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Register(ctx, testutil.OrderSchema()))

	obj, err := s.Create(ctx, "Order", testutil.Order("open", 10, "ann"))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Update(cancelled, "Order", obj.ID, obj.Version, testutil.Order("paid", 10, "ann"))
	require.Error(t, err)
	assert.Equal(t, int64(1), s.seq.issued())

	require.NoError(t, s.Delete(ctx, "Order", obj.ID, obj.Version))
	entries, err := s.Changes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[1].Seq)
}
