package profiler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Define_IsIdempotent(t *testing.T) {
	r := NewRegistry()

	a := r.Define("job count")
	b := r.Define("job count")

	assert.Same(t, a, b)
	assert.Equal(t, "job count", a.Name())
}

func TestRegistry_Snapshot_SortedByName(t *testing.T) {
	// GIVEN counters defined out of order
	r := NewRegistry()
	r.Define("solid count").Set(4)
	r.Define("force count").Increase(2)
	r.Define("job count").Increase(3)
	r.Define("job count").Decrease(1)

	// WHEN a snapshot is taken
	got := r.Snapshot()

	// THEN samples are ordered and carry the latest values
	assert.Equal(t, []Sample{
		{Name: "force count", Value: 2},
		{Name: "job count", Value: 2},
		{Name: "solid count", Value: 4},
	}, got)
}

func TestRegistry_Nil_HandsOutDetachedCounters(t *testing.T) {
	var r *Registry

	c := r.Define("job count")
	c.Increase(5)

	assert.Equal(t, int64(5), c.Value())
	assert.Nil(t, r.Snapshot())
	assert.NotPanics(t, r.Log)
}

func TestCounter_ConcurrentIncrease(t *testing.T) {
	c := NewRegistry().Define("hits")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.Increase(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), c.Value())
}
