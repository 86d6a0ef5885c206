package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/keboola/go-httpchain/pkg/request"
)

type logTrace struct {
	ClientTrace
	wr io.Writer
	id uint64
}

// LogTracer writes one line per request event to the writer.
func LogTracer(wr io.Writer) Factory {
	var idGenerator uint64
	return func(ctx context.Context, cfg request.Config) (context.Context, *ClientTrace) {
		t := &logTrace{wr: wr, id: atomic.AddUint64(&idGenerator, 1)}

		method, url := cfg.MethodOrDefault(), request.JoinURL(cfg.BaseURL, cfg.URL)
		var connStartTime, startTime, doneTime time.Time
		var statusCode int

		t.ConnectStart = func(network, addr string) {
			connStartTime = time.Now()
		}
		t.GotConn = func(info httptrace.GotConnInfo) {
			var infoStr string
			if info.Reused {
				if info.WasIdle {
					infoStr = fmt.Sprintf("reused conn (was idle=%s)", info.IdleTime)
				} else {
					infoStr = "reused conn"
				}
			} else {
				infoStr = fmt.Sprintf("new conn | %s", time.Since(connStartTime))
			}
			t.log(fmt.Sprintf(`CONN  %s "%s" | %s`, method, url, infoStr))
		}
		t.HTTPRequestStart = func(r *http.Request) {
			method, url = r.Method, r.URL.String()
			startTime = time.Now()
			t.log(fmt.Sprintf(`START %s "%s"`, method, url))
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			doneTime = time.Now()
			var errorStr string
			if err == nil {
				statusCode = r.StatusCode
			} else {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(fmt.Sprintf(`DONE  %s "%s" | %d | %s%s`, method, url, statusCode, doneTime.Sub(startTime), errorStr))
		}
		t.HTTPRequestRetry = func(attempt int, delay time.Duration) {
			t.log(fmt.Sprintf(`RETRY %s "%s" | %dx | %s`, method, url, attempt, delay))
		}
		t.BodyParseDone = func(bytes int64, err error) {
			var errorStr string
			if err != nil {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(fmt.Sprintf(`BODY  %s "%s" | %dB | %s%s`, method, url, bytes, time.Since(doneTime), errorStr))
		}
		t.RequestProcessed = func(_ *request.RawResponse, err error) {
			if err != nil {
				t.log(fmt.Sprintf(`ERROR %s "%s" | %s`, method, url, err))
			}
		}
		return ctx, &t.ClientTrace
	}
}

func (t *logTrace) log(a ...any) {
	a = append([]any{fmt.Sprintf("HTTP_REQUEST[%04d]", t.id)}, a...)
	_, _ = fmt.Fprintln(t.wr, a...)
}
