package client

import (
	"context"

	"github.com/keboola/go-httpchain/pkg/request"
)

// Sender sends a request config, the Client is the default implementation.
type Sender interface {
	Request(ctx context.Context, cfg request.Config) (*request.Response, error)
}

// Sendable is a request which can be scheduled in the WaitGroup or RunGroup.
type Sendable interface {
	SendOrErr(ctx context.Context) error
}

// Call is an immutable request bound to a Sender, with optional listeners.
type Call struct {
	sender Sender
	config request.Config
	before []func(ctx context.Context) error
	after  []func(ctx context.Context, response *request.Response, err error) error
}

// NewCall creates a Call of the request config.
func (c *Client) NewCall(cfg request.Config) Call {
	return NewCall(c, cfg)
}

// NewCall creates a Call of the request config, sent by the sender.
func NewCall(sender Sender, cfg request.Config) Call {
	return Call{sender: sender, config: cfg}
}

// Config returns the request config of the Call.
func (r Call) Config() request.Config {
	return r.config
}

// WithBefore returns a clone of the Call with the listener invoked before the request is sent.
// If the listener returns an error, the request is not sent.
func (r Call) WithBefore(fn func(ctx context.Context) error) Call {
	r.before = append(r.before[:len(r.before):len(r.before)], fn)
	return r
}

// WithOnComplete returns a clone of the Call with the listener invoked after the request is sent.
// The listener may replace the error.
func (r Call) WithOnComplete(fn func(ctx context.Context, response *request.Response, err error) error) Call {
	r.after = append(r.after[:len(r.after):len(r.after)], fn)
	return r
}

// WithOnSuccess returns a clone of the Call with the listener invoked if the request succeeded.
func (r Call) WithOnSuccess(fn func(ctx context.Context, response *request.Response) error) Call {
	return r.WithOnComplete(func(ctx context.Context, response *request.Response, err error) error {
		if err == nil {
			err = fn(ctx, response)
		}
		return err
	})
}

// WithOnError returns a clone of the Call with the listener invoked if the request failed.
// The listener may return nil to ignore the error.
func (r Call) WithOnError(fn func(ctx context.Context, err error) error) Call {
	return r.WithOnComplete(func(ctx context.Context, _ *request.Response, err error) error {
		if err != nil {
			err = fn(ctx, err)
		}
		return err
	})
}

// Send the request and invoke listeners.
func (r Call) Send(ctx context.Context) (*request.Response, error) {
	// Stop if context has been cancelled
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Invoke "before" listeners
	for _, fn := range r.before {
		if err := fn(ctx); err != nil {
			return nil, err
		}
	}

	response, err := r.sender.Request(ctx, r.config)

	// Invoke "after" listeners
	for _, fn := range r.after {
		err = fn(ctx, response, err)
	}

	return response, err
}

// SendOrErr sends the request and returns only the error, it implements the Sendable interface.
func (r Call) SendOrErr(ctx context.Context) error {
	_, err := r.Send(ctx)
	return err
}
