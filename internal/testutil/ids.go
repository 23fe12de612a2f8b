package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable object ids for tests: prefix-0001,
// prefix-0002, ... The zero padding keeps id order equal to creation
// order under binary collation.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "obj".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "obj"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Generate implements store.IDGenerator.
func (g *SequentialIDs) Generate() (string, error) {
	return g.Next(), nil
}

// Reset restarts the sequence. After Reset, Next returns prefix-0001.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
