package batch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// CancelledMessage is recorded on items that were pre-empted by an already
// cancelled context before their operation started.
const CancelledMessage = "operation cancelled before start"

// Operation is one unit of work for a single identifier. A non-nil error
// marks the item as failed; expected failures should be returned as errors,
// not panicked.
type Operation[K comparable, T any] func(ctx context.Context, id K) (T, error)

// Item is the outcome for a single identifier.
type Item[K comparable, T any] struct {
	// ID is the caller-supplied correlation key for this item.
	ID K `json:"id"`

	// Success reports whether the operation completed without error.
	Success bool `json:"success"`

	// Data is the operation result. Only meaningful when Success is true.
	Data T `json:"data,omitempty"`

	// Error is the human-readable failure reason. Empty when Success is true.
	Error string `json:"error,omitempty"`
}

// Result is the uniform report for one batch invocation.
type Result[K comparable, T any] struct {
	// Items holds one entry per input identifier, in input order.
	Items []Item[K, T] `json:"items"`

	// SuccessCount is the number of items with Success == true.
	SuccessCount int `json:"success_count"`

	// FailureCount is the number of items with Success == false.
	FailureCount int `json:"failure_count"`
}

// Option configures a batch run.
type Option func(*options)

type options struct {
	limit int64
}

// WithLimit bounds the number of operations in flight at once. Zero or
// negative means unlimited.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = int64(n)
	}
}

// Run invokes op for every id concurrently and waits for all of them to
// settle. Each item's outcome is isolated: an error or panic in one
// operation is captured into its own result item and never aborts the batch.
//
// The result slice is built by position, so Items[i].ID == ids[i] always
// holds. An empty id list returns an empty result without invoking op.
func Run[K comparable, T any](ctx context.Context, ids []K, op Operation[K, T], opts ...Option) Result[K, T] {
	res := Result[K, T]{Items: []Item[K, T]{}}
	if len(ids) == 0 {
		return res
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var sem *semaphore.Weighted
	if o.limit > 0 {
		sem = semaphore.NewWeighted(o.limit)
	}

	items := make([]Item[K, T], len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id K) {
			defer wg.Done()
			items[i] = runOne(ctx, id, op, sem)
		}(i, id)
	}
	wg.Wait()

	res.Items = items
	for i := range items {
		if items[i].Success {
			res.SuccessCount++
		} else {
			res.FailureCount++
		}
	}
	return res
}

// runOne executes op for a single identifier, converting every possible
// outcome into an Item.
func runOne[K comparable, T any](ctx context.Context, id K, op Operation[K, T], sem *semaphore.Weighted) (item Item[K, T]) {
	item.ID = id

	defer func() {
		if r := recover(); r != nil {
			item = Item[K, T]{ID: id, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a slot: the operation
			// never started.
			item.Error = CancelledMessage
			return item
		}
		defer sem.Release(1)
	}

	if ctx.Err() != nil {
		item.Error = CancelledMessage
		return item
	}

	data, err := op(ctx, id)
	if err != nil {
		item.Error = errorText(err)
		return item
	}

	item.Success = true
	item.Data = data
	return item
}

// errorText renders an operation error for the result record.
func errorText(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", err)
}
