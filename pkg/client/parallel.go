package client

import (
	"context"
)

// ParallelCalls are sent concurrently as one Sendable.
type ParallelCalls []Sendable

// Parallel wraps parallel requests to one Sendable interface.
func Parallel(requests ...Sendable) ParallelCalls {
	return requests
}

// SendOrErr sends all requests and waits for them, all errors are returned.
func (v ParallelCalls) SendOrErr(ctx context.Context) error {
	wg := NewWaitGroup(ctx)
	for _, r := range v {
		wg.Send(r)
	}
	return wg.Wait()
}
