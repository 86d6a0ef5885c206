package otel_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	export "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/keboola/go-httpchain/pkg/request"
	"github.com/keboola/go-httpchain/pkg/transport"
	"github.com/keboola/go-httpchain/pkg/transport/trace/otel"
)

const (
	testTraceID    = 0xabcd
	testSpanIDBase = 0x1000
)

type testIDGenerator struct {
	spanID uint16
}

func (g *testIDGenerator) NewIDs(ctx context.Context) (otelTrace.TraceID, otelTrace.SpanID) {
	traceID := toTraceID(testTraceID)
	return traceID, g.NewSpanID(ctx, traceID)
}

func (g *testIDGenerator) NewSpanID(_ context.Context, _ otelTrace.TraceID) otelTrace.SpanID {
	g.spanID++
	return toSpanID(testSpanIDBase + g.spanID)
}

func toTraceID(in uint16) otelTrace.TraceID { //nolint: unparam
	tmp := make([]byte, 16)
	binary.BigEndian.PutUint16(tmp, in)
	return *(*[16]byte)(tmp)
}

func toSpanID(in uint16) otelTrace.SpanID {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint16(tmp, in)
	return *(*[8]byte)(tmp)
}

type telemetry struct {
	spans          *tracetest.InMemoryExporter
	tracerProvider *trace.TracerProvider
	metrics        metric.Reader
	meterProvider  *metric.MeterProvider
}

func newTelemetry(t *testing.T, reader metric.Reader) *telemetry {
	t.Helper()
	res, err := resource.New(context.Background())
	require.NoError(t, err)
	exporter := tracetest.NewInMemoryExporter()
	return &telemetry{
		spans: exporter,
		tracerProvider: trace.NewTracerProvider(
			trace.WithSyncer(exporter),
			trace.WithResource(res),
			trace.WithIDGenerator(&testIDGenerator{}),
		),
		metrics: reader,
		meterProvider: metric.NewMeterProvider(
			metric.WithReader(reader),
			metric.WithResource(res),
		),
	}
}

func TestComplexMockedRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Mocked responses (2x redirect, 3x retry, OK)
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", `https://api.example.com/redirect1`, func(_ *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Location", "https://api.example.com/redirect2")
		return &http.Response{StatusCode: http.StatusMovedPermanently, Header: header}, nil
	})
	mock.RegisterResponder("GET", `https://api.example.com/redirect2`, func(_ *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Location", "https://api.example.com/index")
		return &http.Response{StatusCode: http.StatusMovedPermanently, Header: header}, nil
	})
	attempt := 0
	mock.RegisterResponder("GET", `https://api.example.com/index`, func(req *http.Request) (*http.Response, error) {
		// Trace context is propagated
		assert.NotEmpty(t, req.Header.Get("Traceparent"))

		attempt++
		switch attempt {
		case 1:
			return nil, &net.DNSError{Err: "some network error", IsTemporary: true}
		case 2:
			return &http.Response{StatusCode: http.StatusLocked}, nil
		case 3:
			return &http.Response{StatusCode: http.StatusTooManyRequests}, nil
		case 4:
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK"))}, nil
		default:
			panic(fmt.Errorf(`unexpected attempt "%d"`, attempt))
		}
	})

	// Setup telemetry
	metricExporter, err := export.New()
	require.NoError(t, err)
	tel := newTelemetry(t, metricExporter)

	// Create client
	c := transport.New().
		WithTransport(mock).
		WithRetry(transport.RetryConfig{
			Condition:     transport.DefaultRetryCondition(),
			Count:         3,
			WaitTimeStart: 1 * time.Millisecond,
			WaitTimeMax:   20 * time.Millisecond,
		}).
		AndTrace(otel.NewTrace(
			tel.tracerProvider,
			tel.meterProvider,
			otel.WithRedactedQueryParam("secret"),
			otel.WithRedactedHeaders("X-API-Token"),
			otel.WithPropagators(propagation.TraceContext{}),
		))

	// Run request
	raw, err := c.RoundTrip(ctx, request.Config{
		BaseURL: "https://api.example.com",
		URL:     "/redirect1",
		Params:  map[string]any{"foo": "bar", "secret": "my-secret"},
		Headers: map[string]any{"X-API-Token": "my-secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, "OK", raw.Data)

	// Assert spans
	spans := actualSpans(t, tel.spans)
	assert.Equal(t, []string{
		"go.httpchain.client.request",
		"http.request",
		"http.request",
		"http.request",
		"go.httpchain.client.retry.delay",
		"http.request",
		"go.httpchain.client.retry.delay",
		"http.request",
		"go.httpchain.client.retry.delay",
		"http.request",
		"go.httpchain.client.request.body.parse",
	}, spanNames(spans))

	root := spans[0]
	assert.False(t, root.Parent.IsValid())
	assert.Equal(t, codes.Unset, root.Status.Code)
	assert.Equal(t, map[string]string{
		"resource.name":                 "/redirect1",
		"span.kind":                     "client",
		"span.type":                     "http",
		"definition.method":             "GET",
		"definition.response_type":      "json",
		"definition.url.full":           "https://api.example.com/redirect1?foo=bar&secret=****",
		"definition.url.path":           "/redirect1",
		"definition.url.host.full":      "api.example.com",
		"definition.url.host.prefix":    "api",
		"definition.url.host.suffix":    "example.com",
		"definition.header.x-api-token": "****",
		"definition.params.foo":         "bar",
		"definition.params.secret":      "****",
		"http.status_code":              "200",
	}, attrsMap(root.Attributes))

	// All spans are children of the root span, body parsing belongs to the last request
	for _, span := range spans[1:10] {
		assert.Equal(t, root.SpanContext.SpanID(), span.Parent.SpanID(), span.Name)
	}
	assert.Equal(t, spans[9].SpanContext.SpanID(), spans[10].Parent.SpanID())

	// First request
	first := attrsMap(spans[1].Attributes)
	assert.Equal(t, "https://api.example.com/redirect1?foo=bar&secret=****", first["http.url"])
	assert.Equal(t, "GET", first["http.method"])
	assert.Equal(t, "api.example.com", first["net.peer.name"])
	assert.Equal(t, "go-httpchain", first["http.user_agent"])
	assert.Equal(t, "****", first["http.header.x-api-token"])
	assert.NotEmpty(t, first["http.header.traceparent"])
	assert.Equal(t, "301", first["http.status_code"])
	assert.Equal(t, "https://api.example.com/redirect2", first["http.response.header.location"])

	// Network error
	assert.Equal(t, codes.Error, spans[3].Status.Code)
	assert.Contains(t, spans[3].Status.Description, "some network error")

	// Retry delay
	assert.Equal(t, "1", attrsMap(spans[4].Attributes)["http.request.retry.attempt"])
	assert.Equal(t, "2", attrsMap(spans[6].Attributes)["http.request.retry.attempt"])
	assert.Equal(t, "3", attrsMap(spans[8].Attributes)["http.request.retry.attempt"])

	// HTTP error status
	assert.Equal(t, codes.Error, spans[5].Status.Code)
	assert.Equal(t, "HTTP status code: 423 Locked", spans[5].Status.Description)

	// Body parse
	assert.Equal(t, "2", attrsMap(spans[10].Attributes)["http.read_bytes"])

	// Assert metrics
	metrics := actualMetrics(t, ctx, tel.metrics)
	assert.Equal(t, []string{
		"go.httpchain.client.request.duration",
		"go.httpchain.client.request.in_flight",
		"go.httpchain.client.request.parse.bytes",
		"go.httpchain.client.request.parse.duration",
		"go.httpchain.client.request.parse.in_flight",
		"go.httpchain.http.request.duration",
		"go.httpchain.http.request.in_flight",
	}, metricNames(metrics))
	assert.Equal(t, uint64(1), histogramCount(t, metrics, "go.httpchain.client.request.duration"))
	assert.Equal(t, uint64(6), histogramCount(t, metrics, "go.httpchain.http.request.duration"))
	assert.Equal(t, uint64(1), histogramCount(t, metrics, "go.httpchain.client.request.parse.duration"))
	assert.Equal(t, int64(2), sumValue(t, metrics, "go.httpchain.client.request.parse.bytes"))
	assert.Equal(t, int64(0), sumValue(t, metrics, "go.httpchain.client.request.in_flight"))
	assert.Equal(t, int64(0), sumValue(t, metrics, "go.httpchain.client.request.parse.in_flight"))
	assert.Equal(t, int64(0), sumValue(t, metrics, "go.httpchain.http.request.in_flight"))
}

func TestFailedRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", `https://api.example.com/error`, httpmock.NewErrorResponder(errors.New("connection refused")))
	mock.RegisterResponder("GET", `https://api.example.com/missing`, httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	tel := newTelemetry(t, metric.NewManualReader())
	c := transport.New().WithTransport(mock).AndTrace(otel.NewTrace(tel.tracerProvider, tel.meterProvider))

	// Network error
	_, err := c.RoundTrip(ctx, request.Config{URL: "https://api.example.com/error"})
	require.Error(t, err)

	// HTTP error status is not a transport error
	raw, err := c.RoundTrip(ctx, request.Config{URL: "https://api.example.com/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, raw.Status)

	spans := actualSpans(t, tel.spans)
	assert.Equal(t, []string{
		"go.httpchain.client.request",
		"http.request",
		"go.httpchain.client.request",
		"http.request",
		"go.httpchain.client.request.body.parse",
	}, spanNames(spans))

	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Status.Description, "connection refused")
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	assert.Equal(t, codes.Error, spans[2].Status.Code)
	assert.Equal(t, "HTTP status code: 404 Not Found", spans[2].Status.Description)

	metrics := actualMetrics(t, ctx, tel.metrics)
	assert.Equal(t, uint64(2), histogramCount(t, metrics, "go.httpchain.client.request.duration"))
	assert.Equal(t, int64(0), sumValue(t, metrics, "go.httpchain.client.request.in_flight"))
}

func TestRealRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	tel := newTelemetry(t, metric.NewManualReader())
	c := transport.New().
		WithTransport(transport.DefaultTransport()).
		AndTrace(otel.NewTrace(tel.tracerProvider, tel.meterProvider))

	raw, err := c.RoundTrip(ctx, request.Config{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "OK", raw.Data)

	spans := actualSpans(t, tel.spans)
	for _, span := range spans {
		// All spans must be finished!
		assert.NotZero(t, span.EndTime, span.Name)
	}
	assert.Equal(t, []string{
		"go.httpchain.client.request",
		"http.request",
		"http.getconn",
		"http.connect",
		"http.headers",
		"http.send",
		"http.receive",
		"go.httpchain.client.request.body.parse",
	}, spanNames(spans), spew.Sdump(spans))
}

func TestNilProviders(t *testing.T) {
	t.Parallel()

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", `https://api.example.com`, httpmock.NewStringResponder(http.StatusOK, "OK"))

	c := transport.New().WithTransport(mock).AndTrace(otel.NewTrace(nil, nil))
	raw, err := c.RoundTrip(context.Background(), request.Config{URL: "https://api.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "OK", raw.Data)
}

func actualSpans(t *testing.T, exporter *tracetest.InMemoryExporter) tracetest.SpanStubs {
	t.Helper()
	spans := exporter.GetSpans()
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].SpanContext.SpanID().String() < spans[j].SpanContext.SpanID().String()
	})
	return spans
}

func spanNames(spans tracetest.SpanStubs) (out []string) {
	for _, span := range spans {
		out = append(out, span.Name)
	}
	return out
}

func attrsMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string)
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func actualMetrics(t *testing.T, ctx context.Context, reader metric.Reader) []metricdata.Metrics {
	t.Helper()
	all := &metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(ctx, all))
	require.Len(t, all.ScopeMetrics, 1)
	metrics := all.ScopeMetrics[0].Metrics
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].Name < metrics[j].Name
	})
	return metrics
}

func metricNames(metrics []metricdata.Metrics) (out []string) {
	for _, m := range metrics {
		out = append(out, m.Name)
	}
	return out
}

func findMetric(t *testing.T, metrics []metricdata.Metrics, name string) metricdata.Metrics {
	t.Helper()
	for _, m := range metrics {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf(`metric "%s" not found`, name)
	return metricdata.Metrics{}
}

// histogramCount returns the number of recorded values across all data points.
func histogramCount(t *testing.T, metrics []metricdata.Metrics, name string) (count uint64) {
	t.Helper()
	data, ok := findMetric(t, metrics, name).Data.(metricdata.Histogram[float64])
	require.True(t, ok, name)
	for _, point := range data.DataPoints {
		count += point.Count
	}
	return count
}

// sumValue returns the sum of all data points.
func sumValue(t *testing.T, metrics []metricdata.Metrics, name string) (sum int64) {
	t.Helper()
	data, ok := findMetric(t, metrics, name).Data.(metricdata.Sum[int64])
	require.True(t, ok, name)
	for _, point := range data.DataPoints {
		sum += point.Value
	}
	return sum
}
