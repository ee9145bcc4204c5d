// Package engine implements the dispatch loop: the single owner of the
// content library and the UI state.
//
// ARCHITECTURE:
//
// Single-Writer Message Loop:
// Remote-call handlers, the device event source and timers never touch the
// store or the UI state. They Enqueue typed Messages; Run consumes them one
// at a time, in arrival order, on one goroutine. Each message runs to
// completion (mutation, persistence dispatch, render) before the next one
// is dequeued. This substitutes for locks entirely.
//
// Message Processing Flow:
//  1. Producers call Enqueue (never blocks; the queue is unbounded)
//  2. Run dequeues one message and calls Step
//  3. Step stamps a seq from Clock and an id from the IDGenerator
//  4. The handler mutates Store and/or State
//  5. A content mutation submits a full save round to the persister
//  6. A visible change triggers exactly one render
//  7. Queries and acknowledgements are completed through their Reply
//
// Errors from a handler are logged and absorbed. Only Shutdown (or the
// device Exit event, or context cancellation) ends the loop, and each of
// these dispatches a final save round first.
package engine
