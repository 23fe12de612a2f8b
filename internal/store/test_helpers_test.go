package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/testutil"
)

// createTestStore opens a store in a temp dir with sequential ids and the
// Order schema registered.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithIDGenerator(testutil.NewSequentialIDs("order").Generate)}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Register(context.Background(), testutil.OrderSchema()); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return s
}

func ids(objs []ir.Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.ID
	}
	return out
}
