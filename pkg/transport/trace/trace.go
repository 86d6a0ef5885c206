// Package trace extends the httptrace.ClientTrace and adds hooks of the transport.Client.
// A custom ClientTrace definition can be registered in the transport.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"reflect"
	"time"

	"github.com/keboola/go-httpchain/pkg/request"
)

// Factory creates ClientTrace hooks for a request.
// The returned context is used for the rest of the transport call.
type Factory func(ctx context.Context, cfg request.Config) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an outgoing request.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects and retries.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the request completes. It includes redirects and retries.
	HTTPRequestDone func(response *http.Response, err error)
	// HTTPRequestRetry is called before retry delay.
	HTTPRequestRetry func(attempt int, delay time.Duration)
	// BodyParseStart is called before the response body is read.
	BodyParseStart func(response *http.Response)
	// BodyParseDone is called when the response body is closed, for a stream it is on the caller's Close.
	BodyParseDone func(bytes int64, err error)
	// RequestProcessed is called when the transport.Client RoundTrip method is done.
	RequestProcessed func(response *request.RawResponse, err error)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// The old hook is called first.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	composeHooks(reflect.ValueOf(t).Elem(), reflect.ValueOf(old).Elem())
}

func composeHooks(tv, ov reflect.Value) {
	structType := tv.Type()
	for i := range structType.NumField() {
		tf := tv.Field(i)
		of := ov.Field(i)

		// Embedded httptrace.ClientTrace
		if tf.Kind() == reflect.Struct {
			composeHooks(tf, of)
			continue
		}

		hookType := tf.Type()
		if hookType.Kind() != reflect.Func || of.IsNil() {
			continue
		}
		if tf.IsNil() {
			tf.Set(of)
			continue
		}

		// Make a copy of tf for tf to call. (Otherwise it
		// creates a recursive call cycle and stack overflows)
		tfCopy := reflect.ValueOf(tf.Interface())
		ofCopy := reflect.ValueOf(of.Interface())

		tf.Set(reflect.MakeFunc(hookType, func(args []reflect.Value) []reflect.Value {
			ofCopy.Call(args)
			return tfCopy.Call(args)
		}))
	}
}
