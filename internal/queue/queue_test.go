package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := New[string]()

	require.True(t, q.Enqueue("a"))

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}

	for want := 1; want <= 3; want++ {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestQueue_TryDequeue_Empty(t *testing.T) {
	q := New[int]()

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestQueue_EnqueueAll_KeepsBatchContiguous(t *testing.T) {
	q := New[int]()

	require.True(t, q.EnqueueAll(1, 2, 3))
	require.True(t, q.Enqueue(4))

	var got []int
	for {
		v, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestQueue_Dequeue_BlocksUntilAvailable(t *testing.T) {
	q := New[string]()
	done := make(chan string)

	go func() {
		v, ok := q.Dequeue()
		if ok {
			done <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue("late")

	select {
	case v := <-done:
		assert.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock")
	}
}

func TestQueue_Close_UnblocksDequeue(t *testing.T) {
	q := New[int]()
	done := make(chan bool)

	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock after close")
	}
}

func TestQueue_Close_DrainsRemaining(t *testing.T) {
	q := New[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Close()

	assert.False(t, q.Enqueue(3), "enqueue after close should fail")
	assert.False(t, q.EnqueueAll(4, 5))
	assert.True(t, q.Closed())

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_Close_Idempotent(t *testing.T) {
	q := New[int]()
	q.Close()
	assert.NotPanics(t, q.Close)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New[int]()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
