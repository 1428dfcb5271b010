// Package paginate turns a "crawl one page" function into a lazy, forward-only
// sequence of items that only requests a page once the previous one has been
// consumed.
package paginate

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"sync"
)

// ErrExhausted is returned by Next once the sequence has ended.
var ErrExhausted = errors.New("paginate: no more items")

// Page is the result of crawling a single page.
type Page[T any] struct {
	// in document order
	Items []T
	// 0 when the page does not say
	Number int
	// nil when this is the last page
	Next *url.URL
}

// Step crawls the page at the given url.
type Step[T any] func(ctx context.Context, page *url.URL) (Page[T], error)

type state int

const (
	stateNotStarted state = iota
	stateBuffered
	stateExhausted
)

// Iterator is safe for concurrent use, at most one Step runs at a time.
type Iterator[T any] struct {
	step Step[T]

	mutex  sync.Mutex
	state  state
	cursor *url.URL
	buffer []T
	page   int
	pages  int
}

// New creates an iterator that will crawl seed on first demand.
func New[T any](seed *url.URL, step Step[T]) *Iterator[T] {
	return &Iterator[T]{
		step:   step,
		state:  stateNotStarted,
		cursor: seed,
	}
}

// fill makes sure there is a buffered item if the sequence has not ended yet.
// the caller must hold the mutex.
//
// a failing step leaves the state and the cursor untouched, so calling fill
// again re-attempts the same page.
func (it *Iterator[T]) fill(ctx context.Context) (bool, error) {
	switch it.state {
	case stateExhausted:
		return false, nil
	case stateBuffered:
		if len(it.buffer) > 0 {
			return true, nil
		}
		if it.cursor == nil {
			it.state = stateExhausted
			return false, nil
		}
	}

	page, err := it.step(ctx, it.cursor)
	if err != nil {
		return false, err
	}
	it.pages++
	it.page = page.Number

	// an empty page ends the sequence even if it links to another one
	if len(page.Items) == 0 {
		it.buffer = nil
		it.cursor = nil
		it.state = stateExhausted
		return false, nil
	}

	it.buffer = page.Items
	it.cursor = page.Next
	it.state = stateBuffered
	return true, nil
}

// HasNext reports whether Next will return an item, crawling the next page if
// the current one has been consumed. Once it returns false it always will.
func (it *Iterator[T]) HasNext(ctx context.Context) (bool, error) {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	return it.fill(ctx)
}

// Next returns the next item, or ErrExhausted after the last one.
func (it *Iterator[T]) Next(ctx context.Context) (T, error) {
	it.mutex.Lock()
	defer it.mutex.Unlock()

	var zero T
	ok, err := it.fill(ctx)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrExhausted
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]
	return item, nil
}

// All adapts the iterator for range-over-func. Iteration stops after the
// first error, which is yielded with a zero item.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := it.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Page is the page number reported by the most recently crawled page.
func (it *Iterator[T]) Page() int {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	return it.page
}

// Pages is how many pages have been crawled so far.
func (it *Iterator[T]) Pages() int {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	return it.pages
}
