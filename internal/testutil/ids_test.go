package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	ids := NewSequentialIDs("order")

	assert.Equal(t, "order-0001", ids.Next())
	assert.Equal(t, "order-0002", ids.Next())

	id, err := ids.Generate()
	require.NoError(t, err)
	assert.Equal(t, "order-0003", id)
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "obj-0001", NewSequentialIDs("").Next())
}

func TestSequentialIDs_Reset(t *testing.T) {
	ids := NewSequentialIDs("x")
	ids.Next()
	ids.Next()
	ids.Reset()
	assert.Equal(t, "x-0001", ids.Next())
}

func TestSequentialIDs_ConcurrentUnique(t *testing.T) {
	ids := NewSequentialIDs("c")
	const goroutines = 10
	const perGoroutine = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestOrderFixture(t *testing.T) {
	schema := OrderSchema()
	assert.True(t, schema.IsIndexed("status"))
	assert.Contains(t, schema.Derived, "large")

	order := Order("open", 12.5, "ann")
	assert.Len(t, order, 3)
}
