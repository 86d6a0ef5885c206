package trace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"time"

	"github.com/keboola/go-httpchain/pkg/request"
	"github.com/keboola/go-httpchain/pkg/transport/decode"
)

const dumpTraceMaxLength = 2000

type dumpTrace struct {
	ClientTrace
	wr io.Writer
}

// DumpTracer dumps HTTP request and response to a writer.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) Factory {
	return func(ctx context.Context, _ request.Config) (context.Context, *ClientTrace) {
		var requestMethod, requestURI string
		var responseStatusCode int
		var requestDump []byte
		var responseErr error
		var startTime, headersTime time.Time

		t := &dumpTrace{wr: wr}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			requestMethod = r.Method
			requestURI = r.URL.RequestURI()
			requestDump, _ = httputil.DumpRequestOut(r, true)
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			responseErr = err
			// Response can be nil, for example, if some network error occurred
			if r != nil {
				responseStatusCode = r.StatusCode
				headersTime = time.Now()
			}

			t.log()
			t.log(">>>>>> HTTP DUMP")
			t.dump(string(requestDump))
			t.log("------")
			if err != nil {
				t.log("ERROR: ", err)
			} else {
				t.dumpResponse(r)
			}
			t.log("<<<<<< HTTP DUMP END")
		}
		t.HTTPRequestRetry = func(attempt int, delay time.Duration) {
			t.log()
			t.log(">>>>>> HTTP RETRY", "| ATTEMPT:", attempt, "| DELAY:", delay, "| ", requestMethod, requestURI, responseStatusCode, "| ERROR:", responseErr)
		}
		t.RequestProcessed = func(_ *request.RawResponse, err error) {
			t.log()
			t.log(">>>>>> HTTP REQUEST PROCESSED", "| ", requestMethod, requestURI, responseStatusCode, "| ERROR:", err, "| HEADERS AT:", headersTime.Sub(startTime), "| DONE AT:", time.Since(startTime))
		}
		return ctx, &t.ClientTrace
	}
}

func (t *dumpTrace) dumpResponse(r *http.Response) {
	if v, err := httputil.DumpResponse(r, false); err == nil {
		t.log(strings.TrimSpace(string(v)))
	} else {
		t.log("cannot dump response headers: ", err)
	}

	if r.Body == nil || r.Body == http.NoBody {
		return
	}

	// The raw body is buffered and set back to the response
	rawBody, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(rawBody))

	var decodedBody strings.Builder
	if err == nil {
		var bodyReader io.ReadCloser
		bodyReader, err = decode.Decode(io.NopCloser(bytes.NewReader(rawBody)), r.Header.Get("Content-Encoding"))
		if err == nil {
			_, err = io.Copy(&decodedBody, bodyReader)
		}
	}
	if err != nil {
		t.log("cannot read response body: ", err)
	}

	if decodedBody.Len() > 0 {
		t.log("------")
		t.dump(decodedBody.String())
	}
}

func (t *dumpTrace) dump(body string) {
	body = strings.TrimSpace(body)
	if len(body) > dumpTraceMaxLength && os.Getenv("HTTP_DUMP_TRACE_FULL") != "true" { //nolint:forbidigo
		t.log(body[:dumpTraceMaxLength])
		t.log("... (set env HTTP_DUMP_TRACE_FULL=true to see full output)")
	} else {
		t.log(body)
	}
}

func (t *dumpTrace) log(a ...any) {
	_, _ = fmt.Fprintln(t.wr, a...)
}
