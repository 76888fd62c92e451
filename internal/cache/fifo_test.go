package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO_GetSet(t *testing.T) {
	c := NewFIFO[string, int](3)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestFIFO_EvictsOldestInsertedNotLeastRecentlyUsed(t *testing.T) {
	c := NewFIFO[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	// reading "a" must not protect it from eviction
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestFIFO_OverwriteKeepsInsertionPosition(t *testing.T) {
	c := NewFIFO[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestFIFO_Delete(t *testing.T) {
	c := NewFIFO[int, string](2)
	c.Set(1, "one")
	c.Delete(1)
	c.Delete(42)
	assert.Equal(t, 0, c.Len())
}

func TestFIFO_MinimumCapacity(t *testing.T) {
	c := NewFIFO[int, int](0)
	assert.Equal(t, 1, c.Capacity())
	c.Set(1, 1)
	c.Set(2, 2)
	assert.Equal(t, 1, c.Len())
}

func TestFIFO_ConcurrentInsertAndEvict(t *testing.T) {
	c := NewFIFO[string, int](100)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("%d-%d", w, i%150)
				c.Set(key, i)
				_, _ = c.Get(key)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len())
}
