// Package transport provides the default implementation of the client.Transport, based on the net/http package.
//
// Client performs one HTTP exchange for a fully merged request.Config.
// It supports opt-in retries and tracing/telemetry, see RetryConfig and the trace package.
//
// The Client is an immutable value, builder methods return a modified clone.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/keboola/go-httpchain/pkg/request"
	"github.com/keboola/go-httpchain/pkg/transport/counter"
	"github.com/keboola/go-httpchain/pkg/transport/decode"
	"github.com/keboola/go-httpchain/pkg/transport/trace"
)

// UserAgent is the default User-Agent header.
const UserAgent = "go-httpchain"

// Client performs HTTP requests by Go native http.Client.
type Client struct {
	transport    http.RoundTripper
	header       http.Header
	retry        RetryConfig
	traceFactory trace.Factory
}

// New creates new HTTP transport Client, retries are disabled.
func New() Client {
	c := Client{transport: DefaultTransport(), header: make(http.Header), retry: NoRetry()}
	c.header.Set("User-Agent", UserAgent)
	c.header.Set("Accept-Encoding", decode.AcceptEncoding)
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	return c.WithHeader("User-Agent", v)
}

// WithHeader returns a clone of the Client with global header set.
// The header is sent with each request, unless it is overridden by the request.Config headers.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// WithRetry returns a clone of the Client with retry config set.
func (c Client) WithRetry(retry RetryConfig) Client {
	c.retry = retry
	return c
}

// WithTrace returns a clone of the Client with the trace factory set, previous factories are removed.
func (c Client) WithTrace(fn trace.Factory) Client {
	c.traceFactory = fn
	return c
}

// AndTrace returns a clone of the Client with the trace factory added.
// Factories and their hooks are invoked in the order they were added.
func (c Client) AndTrace(fn trace.Factory) Client {
	prev := c.traceFactory
	if prev == nil {
		c.traceFactory = fn
		return c
	}
	c.traceFactory = func(ctx context.Context, cfg request.Config) (context.Context, *trace.ClientTrace) {
		ctx, oldTrace := prev(ctx, cfg)
		ctx, newTrace := fn(ctx, cfg)
		if newTrace == nil {
			return ctx, oldTrace
		}
		newTrace.Compose(oldTrace)
		return ctx, newTrace
	}
	return c
}

// RoundTrip sends the request defined by the cfg and reads the response.
// The cfg.Data must already be transformed, see request.DefaultTransformRequest.
// Errors are always of the *request.RawError type.
func (c Client) RoundTrip(ctx context.Context, cfg request.Config) (raw *request.RawResponse, err error) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	if !request.SupportedParams(cfg.Params) {
		return nil, &request.RawError{Message: fmt.Sprintf(`unsupported params type "%T"`, cfg.Params)}
	}

	// Init trace
	var t *trace.ClientTrace
	if c.traceFactory != nil {
		ctx, t = c.traceFactory(ctx, cfg)
	}
	if t != nil {
		ctx = httptrace.WithClientTrace(ctx, &t.ClientTrace)
		if t.RequestProcessed != nil {
			defer func() {
				t.RequestProcessed(raw, err)
			}()
		}
	}

	// Timeout of the transport call
	parentCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Setup native client
	nativeClient := http.Client{
		Timeout:   c.retry.TotalRequestTimeout,
		Transport: roundTripper{retry: c.retry, trace: t, wrapped: c.transport}, // wrapped transport for trace/retry
	}

	// Send request
	startedAt := time.Now()
	res, err := nativeClient.Do(req) //nolint:bodyclose // closed by readResponse
	if err != nil {
		ownTimeout := cfg.Timeout > 0 && parentCtx.Err() == nil && ctx.Err() != nil
		return nil, handleSendError(startedAt, ownTimeout, cfg.Timeout, c.retry.TotalRequestTimeout, req, err)
	}

	return readResponse(cfg, req, res, t)
}

func (c Client) newRequest(ctx context.Context, cfg request.Config) (*http.Request, error) {
	method := cfg.MethodOrDefault()
	reqURL := cfg.FullURL()

	// Headers, global values are overridden by the config
	header := c.header.Clone()
	for k, values := range request.FlattenHeaders(cfg.Headers, method) {
		header[k] = values
	}
	if cfg.Data == nil {
		header.Del(request.ContentTypeHeader)
	}

	body, err := newRequestBody(cfg.Data, header.Get(request.ContentTypeHeader))
	if err != nil {
		return nil, &request.RawError{
			Message: fmt.Sprintf("cannot prepare request body: %s", err),
			Err:     err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body.reader)
	if err != nil {
		return nil, &request.RawError{Message: err.Error(), Err: err}
	}
	req.Header = header
	if body.getBody != nil {
		// GetBody factory is used when a redirect/retry requires reading the body more than once.
		req.GetBody = body.getBody
		req.ContentLength = body.length
	}
	return req, nil
}

func readResponse(cfg request.Config, req *http.Request, res *http.Response, t *trace.ClientTrace) (*request.RawResponse, error) {
	// The last attempt, after redirects and retries
	if res.Request != nil {
		req = res.Request
	}

	raw := &request.RawResponse{
		Status:     res.StatusCode,
		StatusText: statusText(res),
		Headers:    res.Header,
		Request:    req,
	}

	// Process content encoding
	body, err := decode.Decode(res.Body, res.Header.Get("Content-Encoding"))
	if err != nil {
		_ = res.Body.Close()
		return nil, &request.RawError{Message: err.Error(), Request: req, Response: raw, Err: err}
	}

	// Trace body parsing
	var onClose counter.OnClose
	if t != nil {
		if t.BodyParseStart != nil {
			t.BodyParseStart(res)
		}
		onClose = t.BodyParseDone
	}
	counted := counter.NewReadCloser(body, onClose)

	// The stream is closed by the caller
	if cfg.ResponseType == request.ResponseTypeStream {
		raw.Data = io.ReadCloser(counted)
		return raw, nil
	}

	bodyBytes, err := io.ReadAll(counted)
	_ = counted.Close()
	if err != nil {
		return nil, &request.RawError{Message: fmt.Sprintf("cannot read response body: %s", err), Request: req, Response: raw, Err: err}
	}

	if cfg.ResponseType == request.ResponseTypeArrayBuffer {
		raw.Data = bodyBytes
	} else {
		raw.Data = string(bodyBytes)
	}
	return raw, nil
}

// statusText returns the reason phrase, without the status code.
func statusText(res *http.Response) string {
	code := fmt.Sprintf("%d ", res.StatusCode)
	if len(res.Status) > len(code) && res.Status[:len(code)] == code {
		return res.Status[len(code):]
	}
	return http.StatusText(res.StatusCode)
}
