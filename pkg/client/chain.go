package client

import (
	"context"
	"fmt"

	"github.com/keboola/go-httpchain/pkg/interceptor"
	"github.com/keboola/go-httpchain/pkg/request"
)

// state of the chain execution, exactly one of the value and the err is set.
type state[T any] struct {
	value T
	err   error
}

// chain is the ordered list of steps executed for one request.
type chain struct {
	request  []interceptor.Interceptor[request.Config]
	dispatch func(ctx context.Context, cfg request.Config) (*request.Response, error)
	response []interceptor.Interceptor[*request.Response]
}

// newChain takes snapshots of the interceptor registries.
// Request interceptors are prepended, so the most recently registered runs first.
// Response interceptors are appended in registration order.
func (c *Client) newChain(dispatch func(ctx context.Context, cfg request.Config) (*request.Response, error)) *chain {
	ch := &chain{dispatch: dispatch}
	c.Interceptors.Request.ForEach(func(i interceptor.Interceptor[request.Config], _ int) {
		ch.request = append([]interceptor.Interceptor[request.Config]{i}, ch.request...)
	})
	c.Interceptors.Response.ForEach(func(i interceptor.Interceptor[*request.Response], _ int) {
		ch.response = append(ch.response, i)
	})
	return ch
}

// run folds the steps over the seeded config.
func (ch *chain) run(ctx context.Context, cfg request.Config) (*request.Response, error) {
	// Request side, the value is a config
	reqState := state[request.Config]{value: cfg}
	for _, step := range ch.request {
		reqState = apply(ctx, reqState, step, cfg)
		if reqState.err == nil {
			cfg = reqState.value
		}
	}

	// Dispatch, failure is passed through, the dispatch step has no rejected handler
	resState := state[*request.Response]{err: reqState.err}
	if reqState.err == nil {
		res, err := ch.dispatch(ctx, reqState.value)
		resState = state[*request.Response]{err: err}
		if err == nil {
			resState.value = res
		}
	}

	// Response side, the value is a response
	for _, step := range ch.response {
		resState = apply(ctx, resState, step, cfg)
	}

	return resState.value, resState.err
}

// apply calls the resolved or the rejected handler of the step.
// A failure without a rejected handler is passed through unchanged.
func apply[T any](ctx context.Context, prev state[T], step interceptor.Interceptor[T], cfg request.Config) (next state[T]) {
	var handler func() (T, error)
	switch {
	case prev.err == nil:
		handler = func() (T, error) { return step.Resolved(ctx, prev.value) }
	case step.Rejected != nil:
		handler = func() (T, error) { return step.Rejected(ctx, prev.err) }
	default:
		return prev
	}

	defer func() {
		if r := recover(); r != nil {
			next = state[T]{err: newInterceptorError(cfg, fmt.Errorf("panic: %v", r))}
		}
	}()

	value, err := handler()
	if err != nil {
		if !isClassified(err) {
			err = newInterceptorError(cfg, err)
		}
		return state[T]{err: err}
	}
	return state[T]{value: value}
}
