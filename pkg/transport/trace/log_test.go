package trace_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-httpchain/pkg/request"
	"github.com/keboola/go-httpchain/pkg/transport"
	"github.com/keboola/go-httpchain/pkg/transport/trace"
)

func TestLogTracer(t *testing.T) {
	t.Parallel()

	// Mocked response
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", `https://example.com`, httpmock.ResponderFromMultipleResponses([]*http.Response{
		{StatusCode: http.StatusLocked},
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK1"))},
		{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK2"))},
	}))
	mock.RegisterResponder("GET", `https://example.com/error`, httpmock.NewErrorResponder(errors.New("connection refused")))

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	ctx := context.Background()
	c := transport.New().
		WithTransport(mock).
		WithRetry(transport.TestingRetry()).
		AndTrace(trace.LogTracer(&logs))

	// Expected trace
	expected := `
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 423 | %s
HTTP_REQUEST[0001] RETRY GET "https://example.com" | 1x | 1ms
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 429 | %s
HTTP_REQUEST[0001] RETRY GET "https://example.com" | 2x | 1ms
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 200 | %s
HTTP_REQUEST[0001] BODY  GET "https://example.com" | 3B | %s
HTTP_REQUEST[0002] START GET "https://example.com"
HTTP_REQUEST[0002] DONE  GET "https://example.com" | 200 | %s
HTTP_REQUEST[0002] BODY  GET "https://example.com" | 3B | %s
HTTP_REQUEST[0003] START GET "https://example.com/error"
HTTP_REQUEST[0003] DONE  GET "https://example.com/error" | 0 | %s | error=connection refused
HTTP_REQUEST[0003] RETRY GET "https://example.com/error" | 1x | 1ms
%A
HTTP_REQUEST[0003] ERROR GET "https://example.com/error" | connection refused
`

	// Test
	raw, err := c.RoundTrip(ctx, request.Config{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "OK1", raw.Data)
	raw, err = c.RoundTrip(ctx, request.Config{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "OK2", raw.Data)
	_, err = c.RoundTrip(ctx, request.Config{URL: "https://example.com/error"})
	require.Error(t, err)
	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), logs.String())
}
