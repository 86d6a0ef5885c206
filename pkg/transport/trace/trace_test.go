package trace_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-httpchain/pkg/request"
	"github.com/keboola/go-httpchain/pkg/transport"
	. "github.com/keboola/go-httpchain/pkg/transport/trace"
)

func TestTrace(t *testing.T) {
	t.Parallel()

	// Mocked response
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", `https://example.com/redirect1`, func(request *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Location", "https://example.com/redirect2")
		return &http.Response{StatusCode: http.StatusMovedPermanently, Header: header}, nil
	})
	mock.RegisterResponder("GET", `https://example.com/redirect2`, func(request *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Location", "https://example.com/index")
		return &http.Response{StatusCode: http.StatusMovedPermanently, Header: header}, nil
	})
	mock.RegisterResponder("GET", `https://example.com/index`, httpmock.ResponderFromMultipleResponses([]*http.Response{
		{StatusCode: http.StatusLocked},
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK"))},
	}))

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	c := transport.New().
		WithTransport(mock).
		WithRetry(transport.RetryConfig{
			Condition:     transport.DefaultRetryCondition(),
			Count:         3,
			WaitTimeStart: 1 * time.Microsecond,
			WaitTimeMax:   20 * time.Microsecond,
		}).
		AndTrace(func(ctx context.Context, cfg request.Config) (context.Context, *ClientTrace) {
			logs.WriteString(fmt.Sprintf("Factory           %s %s\n", cfg.MethodOrDefault(), cfg.URL))
			return ctx, &ClientTrace{
				HTTPRequestStart: func(request *http.Request) {
					logs.WriteString(fmt.Sprintf("HTTPRequestStart  %s %s\n", request.Method, request.URL))
				},
				HTTPRequestDone: func(response *http.Response, err error) {
					logs.WriteString(fmt.Sprintf("HTTPRequestDone   %d %s err=%v\n", response.StatusCode, http.StatusText(response.StatusCode), err))
				},
				HTTPRequestRetry: func(attempt int, delay time.Duration) {
					logs.WriteString(fmt.Sprintf("HTTPRequestRetry  attempt=%d delay=%s\n", attempt, delay))
				},
				BodyParseStart: func(response *http.Response) {
					logs.WriteString(fmt.Sprintf("BodyParseStart    %d\n", response.StatusCode))
				},
				BodyParseDone: func(bytes int64, err error) {
					logs.WriteString(fmt.Sprintf("BodyParseDone     bytes=%d err=%v\n", bytes, err))
				},
				RequestProcessed: func(response *request.RawResponse, err error) {
					s := spew.NewDefaultConfig()
					s.DisablePointerAddresses = true
					s.DisableCapacities = true
					logs.WriteString(fmt.Sprintf("RequestProcessed  status=%d data=%s err=%v\n", response.Status, strings.TrimSpace(s.Sdump(response.Data)), err))
				},
			}
		})

	// Expected events
	expected := `
Factory           GET https://example.com/redirect1
HTTPRequestStart  GET https://example.com/redirect1
HTTPRequestDone   301 Moved Permanently err=<nil>
HTTPRequestStart  GET https://example.com/redirect2
HTTPRequestDone   301 Moved Permanently err=<nil>
HTTPRequestStart  GET https://example.com/index
HTTPRequestDone   423 Locked err=<nil>
HTTPRequestRetry  attempt=1 delay=1µs
HTTPRequestStart  GET https://example.com/index
HTTPRequestDone   429 Too Many Requests err=<nil>
HTTPRequestRetry  attempt=2 delay=2µs
HTTPRequestStart  GET https://example.com/index
HTTPRequestDone   200 OK err=<nil>
BodyParseStart    200
BodyParseDone     bytes=2 err=<nil>
RequestProcessed  status=200 data=(string) (len=2) "OK" err=<nil>
`

	// Test
	raw, err := c.RoundTrip(context.Background(), request.Config{URL: "https://example.com/redirect1"})
	require.NoError(t, err)
	assert.Equal(t, "OK", raw.Data)
	assert.Equal(t, strings.TrimLeft(expected, "\n"), logs.String())
}

func TestTrace_Multiple(t *testing.T) {
	t.Parallel()

	// Mocked response
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(200, "OK"))

	// Logs for trace testing
	var logs strings.Builder
	hook := func(prefix string) Factory {
		return func(ctx context.Context, cfg request.Config) (context.Context, *ClientTrace) {
			logs.WriteString(fmt.Sprintf("%s: Factory           %s %s\n", prefix, cfg.MethodOrDefault(), cfg.URL))
			return ctx, &ClientTrace{
				HTTPRequestStart: func(request *http.Request) {
					logs.WriteString(fmt.Sprintf("%s: HTTPRequestStart  %s %s\n", prefix, request.Method, request.URL))
				},
				RequestProcessed: func(response *request.RawResponse, err error) {
					logs.WriteString(fmt.Sprintf("%s: RequestProcessed  %d err=%v\n", prefix, response.Status, err))
				},
			}
		}
	}

	// Create client, the second factory returns nil trace
	c := transport.New().
		WithTransport(mock).
		AndTrace(hook("1")).
		AndTrace(func(ctx context.Context, _ request.Config) (context.Context, *ClientTrace) {
			logs.WriteString("2: Factory\n")
			return ctx, nil
		}).
		AndTrace(hook("3"))

	// Expected events
	expected := `
1: Factory           GET https://example.com
2: Factory
3: Factory           GET https://example.com
1: HTTPRequestStart  GET https://example.com
3: HTTPRequestStart  GET https://example.com
1: RequestProcessed  200 err=<nil>
3: RequestProcessed  200 err=<nil>
`

	// Test
	_, err := c.RoundTrip(context.Background(), request.Config{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, strings.TrimLeft(expected, "\n"), logs.String())

	// WithTrace replaces all previous factories
	logs.Reset()
	_, err = c.WithTrace(hook("4")).RoundTrip(context.Background(), request.Config{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "4: Factory           GET https://example.com\n4: HTTPRequestStart  GET https://example.com\n4: RequestProcessed  200 err=<nil>\n", logs.String())
}

func TestClientTrace_Compose(t *testing.T) {
	t.Parallel()

	var calls []string
	old := &ClientTrace{}
	old.GotConn = nil
	old.WroteHeaders = func() { calls = append(calls, "old WroteHeaders") }
	old.BodyParseDone = func(bytes int64, err error) { calls = append(calls, fmt.Sprintf("old BodyParseDone %d", bytes)) }
	old.HTTPRequestRetry = func(attempt int, delay time.Duration) { calls = append(calls, "old HTTPRequestRetry") }

	current := &ClientTrace{}
	current.WroteHeaders = func() { calls = append(calls, "new WroteHeaders") }
	current.BodyParseDone = func(bytes int64, err error) { calls = append(calls, fmt.Sprintf("new BodyParseDone %d", bytes)) }
	current.Compose(old)
	current.Compose(nil)

	current.WroteHeaders()
	current.BodyParseDone(123, nil)
	current.HTTPRequestRetry(1, time.Second)
	assert.Nil(t, current.GotConn)
	assert.Equal(t, []string{
		"old WroteHeaders",
		"new WroteHeaders",
		"old BodyParseDone 123",
		"new BodyParseDone 123",
		"old HTTPRequestRetry",
	}, calls)
}
