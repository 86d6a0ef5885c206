package client

import (
	"os"

	"github.com/jarcoal/httpmock"

	"github.com/keboola/go-httpchain/pkg/transport"
	"github.com/keboola/go-httpchain/pkg/transport/trace"
)

// NewTestTransport creates the transport.Client for tests, with fast retries.
//
// If the TEST_HTTP_CLIENT_VERBOSE environment variable is set to "true",
// then all HTTP requests and responses are dumped to stdout.
//
// Output may contain unmasked tokens, do not use it in production.
func NewTestTransport() transport.Client {
	t := transport.New().WithRetry(transport.TestingRetry())
	if os.Getenv("TEST_HTTP_CLIENT_VERBOSE") == "true" {
		t = t.AndTrace(trace.DumpTracer(os.Stdout))
	}
	return t
}

// NewTestClient creates the Client for tests, see NewTestTransport.
func NewTestClient(opts ...Option) *Client {
	return New(append([]Option{WithTransport(NewTestTransport())}, opts...)...)
}

// NewMockedClient creates the Client with mocked HTTP transport.
// Retries are disabled, so each registered response is consumed once.
func NewMockedClient(opts ...Option) (*Client, *httpmock.MockTransport) {
	mock := httpmock.NewMockTransport()
	t := NewTestTransport().WithTransport(mock).WithRetry(transport.NoRetry())
	return New(append([]Option{WithTransport(t)}, opts...)...), mock
}
