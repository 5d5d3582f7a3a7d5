// Package collector walks cursor-paginated upstream queries into a single
// in-memory result.
package collector

import (
	"context"
	"errors"
	"fmt"
)

// ErrUpstreamFetch is matched by every collection failure.
var ErrUpstreamFetch = errors.New("upstream fetch failed")

// Page is one page of an upstream query.
type Page[T any] struct {
	Records     []T
	HasNextPage bool
	EndCursor   string
}

// PageSource fetches the page that follows cursor. An empty cursor asks for
// the first page.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, query, cursor string) (*Page[T], error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc[T any] func(ctx context.Context, query, cursor string) (*Page[T], error)

// FetchPage calls f.
func (f PageSourceFunc[T]) FetchPage(ctx context.Context, query, cursor string) (*Page[T], error) {
	return f(ctx, query, cursor)
}

// Termination tells why collection stopped.
type Termination string

const (
	TerminationExhausted Termination = "exhausted"
	TerminationCapped    Termination = "capped"
)

// Result holds every record collected, in page order.
type Result[T any] struct {
	Records     []T
	Pages       int
	Termination Termination
}

// Truncated reports whether the page cap stopped collection early.
func (r *Result[T]) Truncated() bool {
	return r.Termination == TerminationCapped
}

// FetchError aborts a collection. No partial result accompanies it.
type FetchError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("collector: page %d: %v", e.Page, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrUpstreamFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}

// Collect fetches pages sequentially starting from an empty cursor until the
// source reports no next page or maxPages pages have been fetched. A
// non-positive maxPages means no cap. Any failing page aborts the whole
// collection; there are no retries.
func Collect[T any](ctx context.Context, source PageSource[T], query string, maxPages int) (*Result[T], error) {
	result := &Result[T]{Records: make([]T, 0)}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Page: result.Pages + 1, Err: err}
		}

		page, err := source.FetchPage(ctx, query, cursor)
		if err != nil {
			return nil, &FetchError{Page: result.Pages + 1, Err: err}
		}
		if page == nil {
			return nil, &FetchError{Page: result.Pages + 1, Err: errors.New("empty page")}
		}

		result.Pages++
		result.Records = append(result.Records, page.Records...)

		if !page.HasNextPage {
			result.Termination = TerminationExhausted
			return result, nil
		}
		if maxPages > 0 && result.Pages >= maxPages {
			result.Termination = TerminationCapped
			return result, nil
		}
		if page.EndCursor == "" {
			return nil, &FetchError{Page: result.Pages, Err: errors.New("next page advertised without a cursor")}
		}
		cursor = page.EndCursor
	}
}
