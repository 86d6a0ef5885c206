// Package client provides the request pipeline of an HTTP client.
//
// Each request is processed by a chain of steps:
//   - request interceptors, the most recently registered runs first,
//   - the dispatch step, which validates the config, transforms the data and calls the Transport,
//   - response interceptors, in registration order.
//
// The per-call request.Config is merged with the Client defaults by request.Merge.
// A failure skips resolved handlers until a step with a rejected handler recovers it.
//
// Client is safe for concurrent use.
// Transport is an injected collaborator, the default implementation is transport.Client based on net/http.
//
// RunGroup and WaitGroup are helpers for concurrent requests.
package client

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/keboola/go-httpchain/pkg/interceptor"
	"github.com/keboola/go-httpchain/pkg/request"
	"github.com/keboola/go-httpchain/pkg/transport"
)

// Transport performs the network exchange for a fully merged request.Config.
// On failure, it should return *request.RawError, so timeouts can be classified.
type Transport interface {
	RoundTrip(ctx context.Context, cfg request.Config) (*request.RawResponse, error)
}

// TransportFunc is an adapter to use an ordinary function as the Transport.
type TransportFunc func(ctx context.Context, cfg request.Config) (*request.RawResponse, error)

func (f TransportFunc) RoundTrip(ctx context.Context, cfg request.Config) (*request.RawResponse, error) {
	return f(ctx, cfg)
}

// Interceptors are registries of request and response processing steps.
type Interceptors struct {
	Request  *interceptor.Manager[request.Config]
	Response *interceptor.Manager[*request.Response]
}

// Client is the request pipeline.
// It owns the defaults config and the two interceptor registries, they are never replaced.
type Client struct {
	defaults     request.Config
	transport    Transport
	Interceptors Interceptors
}

// Option configures the Client in the New function.
type Option func(c *Client)

// WithTransport sets the Transport, transport.New() is used by default.
func WithTransport(t Transport) Option {
	if t == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	return func(c *Client) {
		c.transport = t
	}
}

// WithDefaults merges the cfg over the current defaults.
func WithDefaults(cfg request.Config) Option {
	return func(c *Client) {
		c.defaults = request.Merge(c.defaults, cfg)
	}
}

// WithBaseURL sets the default base URL.
func WithBaseURL(baseURL string) Option {
	return WithDefaults(request.Config{BaseURL: baseURL})
}

// WithTimeout sets the default timeout of the transport call.
func WithTimeout(timeout time.Duration) Option {
	return WithDefaults(request.Config{Timeout: timeout})
}

// WithHeader sets the default header, for all methods.
func WithHeader(key, value string) Option {
	return WithDefaults(request.Config{Headers: map[string]any{request.HeadersCommon: map[string]any{key: value}}})
}

// Defaults returns the built-in defaults of a new Client.
func Defaults() request.Config {
	return request.Config{
		Method:       http.MethodGet,
		ResponseType: request.ResponseTypeJSON,
		Headers: map[string]any{
			request.HeadersCommon: map[string]any{"Accept": "application/json, text/plain, */*"},
		},
		TransformRequest:  []request.RequestTransformer{request.DefaultTransformRequest},
		TransformResponse: []request.ResponseTransformer{request.DefaultTransformResponse},
	}
}

// New creates a Client with the built-in Defaults.
func New(opts ...Option) *Client {
	c := &Client{defaults: Defaults(), transport: transport.New()}
	for _, o := range opts {
		o(c)
	}
	c.Interceptors = Interceptors{
		Request:  interceptor.NewManager[request.Config](),
		Response: interceptor.NewManager[*request.Response](),
	}
	return c
}

// Create creates a new Client with the built-in Defaults merged with the cfg.
func Create(cfg request.Config, opts ...Option) *Client {
	return New(append([]Option{WithDefaults(cfg)}, opts...)...)
}

// Create creates an independent Client, the defaults are merged with the cfg.
// The new Client uses the same Transport, but its interceptor registries are empty.
func (c *Client) Create(cfg request.Config) *Client {
	return New(WithTransport(c.transport), func(child *Client) {
		child.defaults = request.Merge(c.defaults, cfg)
	})
}

// Defaults returns a copy of the Client defaults.
func (c *Client) Defaults() request.Config {
	out := c.defaults
	if out.Headers != nil {
		out.Headers = request.DeepMerge(out.Headers)
	}
	out.Extensions = maps.Clone(out.Extensions)
	return out
}
