package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/keboola/go-httpchain/pkg/request"
)

// ZerologTracer logs request events as structured zerolog events.
// Each request gets a "request_id" field, the events are:
// "http request start" (debug), "http request done" (debug), "http request retry" (warn),
// "http response body" (debug) and "http request failed" (error).
func ZerologTracer(logger zerolog.Logger) Factory {
	var idGenerator uint64
	return func(ctx context.Context, cfg request.Config) (context.Context, *ClientTrace) {
		l := logger.With().
			Uint64("request_id", atomic.AddUint64(&idGenerator, 1)).
			Str("method", cfg.MethodOrDefault()).
			Str("url", request.JoinURL(cfg.BaseURL, cfg.URL)).
			Logger()

		var startTime, doneTime time.Time
		t := &ClientTrace{}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			l.Debug().Str("full_url", r.URL.String()).Msg("http request start")
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			doneTime = time.Now()
			e := l.Debug().Dur("duration", doneTime.Sub(startTime))
			if r != nil {
				e = e.Int("status", r.StatusCode)
			}
			e.Err(err).Msg("http request done")
		}
		t.HTTPRequestRetry = func(attempt int, delay time.Duration) {
			l.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("http request retry")
		}
		t.BodyParseDone = func(bytes int64, err error) {
			l.Debug().Int64("bytes", bytes).Dur("duration", time.Since(doneTime)).Err(err).Msg("http response body")
		}
		t.RequestProcessed = func(_ *request.RawResponse, err error) {
			if err != nil {
				l.Error().Err(err).Msg("http request failed")
			}
		}
		return l.WithContext(ctx), t
	}
}
