package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/keboola/go-httpchain/pkg/cancel"
	"github.com/keboola/go-httpchain/pkg/request"
)

// Request merges the cfg with the Client defaults and sends it through the interceptors chain.
func (c *Client) Request(ctx context.Context, cfg request.Config) (*request.Response, error) {
	return c.send(ctx, request.Merge(c.defaults, cfg))
}

// RequestURL is a shortcut for the Request with the url set.
func (c *Client) RequestURL(ctx context.Context, url string, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfig(cfg, url, ""))
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, url string, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfig(cfg, url, http.MethodGet))
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfig(cfg, url, http.MethodDelete))
}

// Head sends a HEAD request.
func (c *Client) Head(ctx context.Context, url string, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfig(cfg, url, http.MethodHead))
}

// Options sends an OPTIONS request.
func (c *Client) Options(ctx context.Context, url string, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfig(cfg, url, http.MethodOptions))
}

// Post sends a POST request with the data.
func (c *Client) Post(ctx context.Context, url string, data any, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfigWithData(cfg, url, http.MethodPost, data))
}

// Put sends a PUT request with the data.
func (c *Client) Put(ctx context.Context, url string, data any, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfigWithData(cfg, url, http.MethodPut, data))
}

// Patch sends a PATCH request with the data.
func (c *Client) Patch(ctx context.Context, url string, data any, cfg ...request.Config) (*request.Response, error) {
	return c.Request(ctx, callConfigWithData(cfg, url, http.MethodPatch, data))
}

// Pending is a request running in the background, see Client.Go.
type Pending struct {
	done     chan struct{}
	response *request.Response
	err      error
}

// Go starts the request in a new goroutine and returns immediately.
// The cfg is merged with the defaults before the method returns.
func (c *Client) Go(ctx context.Context, cfg request.Config) *Pending {
	p := &Pending{done: make(chan struct{})}
	merged := request.Merge(c.defaults, cfg)
	go func() {
		defer close(p.done)
		p.response, p.err = c.send(ctx, merged)
	}()
	return p
}

// Done returns a channel closed when the request is completed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait for the request and return its outcome.
func (p *Pending) Wait() (*request.Response, error) {
	<-p.done
	return p.response, p.err
}

func (c *Client) send(ctx context.Context, merged request.Config) (*request.Response, error) {
	// Already canceled, the chain is not built
	if err := merged.CancelToken.ThrowIfRequested(); err != nil {
		return nil, err
	}
	return c.newChain(c.dispatch).run(ctx, merged)
}

// dispatch is the terminal step of the chain, it calls the Transport.
func (c *Client) dispatch(ctx context.Context, cfg request.Config) (*request.Response, error) {
	// The token may have been canceled by a request interceptor
	if err := cfg.CancelToken.ThrowIfRequested(); err != nil {
		return nil, err
	}

	cfg.Method = cfg.MethodOrDefault()
	if err := validateConfig(cfg); err != nil {
		return nil, newValidationError(cfg, err)
	}

	// Transform data, headers are copied, a transformer may modify them
	cfg.Headers = request.DeepMerge(cfg.Headers)
	data, err := recoverTransform(func() (any, error) {
		return request.ApplyRequestTransformers(cfg.TransformRequest, cfg.Data, cfg.Headers)
	})
	if err != nil {
		return nil, newInterceptorError(cfg, err)
	}
	cfg.Data = data

	raw, err := c.roundTrip(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := request.NewResponse(cfg, raw)
	res.Data, err = recoverTransform(func() (any, error) {
		return request.ApplyResponseTransformers(cfg.TransformResponse, res.Data, res.Headers)
	})
	if err != nil {
		closeData(raw)
		return nil, newInterceptorError(cfg, err)
	}

	if !res.IsSuccess() {
		return nil, newHTTPStatusError(res)
	}
	return res, nil
}

// recoverTransform calls the transformers, a panic is returned as an error.
func recoverTransform(fn func() (any, error)) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

type roundTripResult struct {
	raw *request.RawResponse
	err error
}

// roundTrip races the Transport call against the cancel token, the timeout and the ctx.
// If the race is lost, the transport ctx is canceled, so the Transport can abort the request.
func (c *Client) roundTrip(ctx context.Context, cfg request.Config) (*request.RawResponse, error) {
	var transportCtx context.Context
	var abort context.CancelFunc
	if cfg.Timeout > 0 {
		transportCtx, abort = context.WithTimeout(ctx, cfg.Timeout)
	} else {
		transportCtx, abort = context.WithCancel(ctx)
	}
	defer abort()

	resultCh := make(chan roundTripResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- roundTripResult{err: fmt.Errorf("transport panic: %v", r)}
			}
		}()
		raw, err := c.transport.RoundTrip(transportCtx, cfg)
		resultCh <- roundTripResult{raw: raw, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err == nil {
			if result.raw == nil {
				return nil, classifyTransportError(cfg, errors.New("transport returned no response"))
			}
			return result.raw, nil
		}
		// The transport may notice the abort first
		if err := cfg.CancelToken.ThrowIfRequested(); err != nil {
			return nil, err
		}
		if transportCtx.Err() != nil {
			return nil, contextError(ctx, cfg)
		}
		return nil, classifyTransportError(cfg, result.err)
	case <-cfg.CancelToken.Done():
		go discardResult(resultCh)
		return nil, cfg.CancelToken.Reason()
	case <-transportCtx.Done():
		go discardResult(resultCh)
		return nil, contextError(ctx, cfg)
	}
}

// discardResult waits for the result of a lost race, so a stream body is not leaked.
func discardResult(resultCh <-chan roundTripResult) {
	closeData((<-resultCh).raw)
}

func closeData(raw *request.RawResponse) {
	if raw == nil {
		return
	}
	if closer, ok := raw.Data.(io.Closer); ok {
		_ = closer.Close()
	}
}

// contextError converts the end of the transport ctx to an error.
func contextError(ctx context.Context, cfg request.Config) error {
	switch {
	case ctx.Err() == nil:
		// Config timeout
		return newTimeoutError(cfg, nil, &request.RawError{
			Message: fmt.Sprintf("timeout of %s exceeded", cfg.Timeout),
			Code:    request.CodeTimeout,
			Err:     context.DeadlineExceeded,
		})
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return newTimeoutError(cfg, nil, ctx.Err())
	default:
		return &cancel.Cancel{Message: context.Cause(ctx).Error()}
	}
}

func classifyTransportError(cfg request.Config, err error) error {
	var rawErr *request.RawError
	if !errors.As(err, &rawErr) {
		rawErr = &request.RawError{Message: err.Error(), Err: err}
	}
	if rawErr.Timeout() {
		return newTimeoutError(cfg, rawErr.Request, rawErr)
	}
	return newTransportError(cfg, rawErr)
}

// callConfig returns a copy of the optional config with the url and the method set.
func callConfig(cfg []request.Config, url, method string) request.Config {
	var out request.Config
	if len(cfg) > 0 {
		out = cfg[0]
	}
	out.URL = url
	if method != "" {
		out.Method = method
	}
	return out
}

// callConfigWithData is callConfig, the data is always set, even if it is nil.
func callConfigWithData(cfg []request.Config, url, method string, data any) request.Config {
	out := callConfig(cfg, url, method)
	out.Data = data
	return out
}
