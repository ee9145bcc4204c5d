package engine

import (
	"context"
	"sync"
)

// Result is what a Reply delivers.
type Result[T any] struct {
	Value T
	Err   error
}

// Reply is a single-use completion handle carried by a message.
//
// The dispatch loop completes it during the turn that processes the
// message. Completion never blocks: the channel has room for exactly one
// result, so a caller that stopped waiting costs nothing. Later
// completions are ignored.
type Reply[T any] struct {
	ch   chan Result[T]
	once sync.Once
}

// Ack is a Reply that carries only an error.
type Ack = Reply[struct{}]

// NewReply creates an uncompleted handle.
func NewReply[T any]() *Reply[T] {
	return &Reply[T]{ch: make(chan Result[T], 1)}
}

// NewAck creates an uncompleted acknowledgement handle.
func NewAck() *Ack {
	return NewReply[struct{}]()
}

// Complete delivers the result. Returns false if the handle was already
// completed. A nil handle is a no-op.
func (r *Reply[T]) Complete(v T, err error) bool {
	if r == nil {
		return false
	}
	done := false
	r.once.Do(func() {
		r.ch <- Result[T]{Value: v, Err: err}
		done = true
	})
	return done
}

// Fail completes the handle with err and a zero value.
func (r *Reply[T]) Fail(err error) bool {
	var zero T
	return r.Complete(zero, err)
}

// Wait blocks until the result arrives or ctx is done.
func (r *Reply[T]) Wait(ctx context.Context) (T, error) {
	select {
	case res := <-r.ch:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done exposes the result channel for use in a select.
func (r *Reply[T]) Done() <-chan Result[T] {
	return r.ch
}
