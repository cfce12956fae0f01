package dataset

import (
	"context"
	"sync"
)

// Outcome is the result of one FanOut item.
type Outcome[R any] struct {
	Value R
	Err   error
}

// FanOut runs fn for every item with at most limit calls in flight and
// returns the outcomes in input order. A failing item does not stop the
// others; items not yet started when ctx is cancelled get ctx.Err().
func FanOut[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) []Outcome[R] {
	if limit < 1 {
		limit = 1
	}
	out := make([]Outcome[R], len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				out[j].Err = ctx.Err()
			}
			wg.Wait()
			return out
		}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := fn(ctx, i, item)
			out[i] = Outcome[R]{Value: v, Err: err}
		}(i, item)
	}
	wg.Wait()
	return out
}
