// Package workerpool provides bounded-concurrency parallel processing for
// image uploads and per-marker orchestration fan-out: a fixed number of
// workers pulling from a shared input channel, returning results in
// input order regardless of completion order.
package workerpool

import (
	"context"
	"sync"
)

// Pool bounds how many Process calls run fn concurrently.
type Pool struct {
	workers int
}

// New creates a pool with the given worker count, clamped to at least 1.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Task pairs one input with the result (or error) fn produced for it.
type Task[T any, R any] struct {
	Input  T
	Result R
	Err    error
}

// Process runs fn over every input using at most p.workers goroutines at
// once, returning one Task per input in the same order inputs was given,
// regardless of which goroutine finished first. A cancelled ctx stops
// dispatching further inputs; in-flight calls still complete.
func Process[T any, R any](ctx context.Context, p *Pool, inputs []T, fn func(context.Context, T) (R, error)) []Task[T, R] {
	if len(inputs) == 0 {
		return nil
	}

	type indexedInput struct {
		index int
		input T
	}
	type indexedResult struct {
		index  int
		result R
		err    error
	}

	inputCh := make(chan indexedInput, len(inputs))
	resultCh := make(chan indexedResult, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-inputCh:
					if !ok {
						return
					}
					result, err := fn(ctx, item.input)
					resultCh <- indexedResult{index: item.index, result: result, err: err}
				}
			}
		}()
	}

	go func() {
	dispatch:
		for i, input := range inputs {
			select {
			case <-ctx.Done():
				break dispatch
			case inputCh <- indexedInput{index: i, input: input}:
			}
		}
		close(inputCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Task[T, R], len(inputs))
	for i := range inputs {
		results[i].Input = inputs[i]
	}
	for r := range resultCh {
		results[r.index].Result = r.result
		results[r.index].Err = r.err
	}
	return results
}
