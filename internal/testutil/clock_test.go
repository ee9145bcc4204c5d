package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	c := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, c.Now())

	start := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, start, NewFakeClock(start).Now())
}

func TestFakeClock_Advance(t *testing.T) {
	c := NewFakeClock(time.Time{})

	assert.Equal(t, Epoch.Add(time.Second), c.Advance(time.Second))
	assert.Equal(t, Epoch.Add(time.Second), c.Advance(-time.Hour), "never runs backwards")
	assert.Equal(t, time.Second, c.Since(Epoch))
}

func TestFakeClock_Concurrent(t *testing.T) {
	c := NewFakeClock(time.Time{})
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, Epoch.Add(50*time.Millisecond), c.Now())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "msg-0001", g.Generate())
	assert.Equal(t, "msg-0002", g.Generate())

	g.Reset()
	assert.Equal(t, "msg-0001", g.Generate())

	assert.Equal(t, "scn-0001", NewSequentialIDs("scn").Generate())
}

func TestSequentialIDs_ConcurrentUnique(t *testing.T) {
	g := NewSequentialIDs("x")
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 100)
}
