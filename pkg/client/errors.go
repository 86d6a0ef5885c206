package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/keboola/go-httpchain/pkg/cancel"
	"github.com/keboola/go-httpchain/pkg/request"
)

// RequestError contains details common to all request errors, it is embedded in each error type.
// Use ErrorDetails to get it from any error of the taxonomy.
type RequestError struct {
	Message string
	// Code is request.CodeTimeout for timeouts, otherwise it may be empty.
	Code string
	// Config that produced the error.
	Config request.Config
	// Request is an opaque handle of the transport request, if it was created.
	Request any
	// Response is set only by the HTTPStatusError.
	Response *request.Response
	Err      error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Details returns the common part of the error.
func (e *RequestError) Details() *RequestError {
	return e
}

// ValidationError - the request config is not valid, the transport has not been called.
type ValidationError struct {
	RequestError
}

// TransportError - connection level failure, no response has been received.
type TransportError struct {
	RequestError
}

// TimeoutError - the transport call exceeded the timeout, no response has been received.
type TimeoutError struct {
	RequestError
}

// HTTPStatusError - a response has been received, but the status is not 2xx.
type HTTPStatusError struct {
	RequestError
}

// StatusCode returns status of the response.
func (e *HTTPStatusError) StatusCode() int {
	return e.Response.Status
}

// InterceptorError - a failure raised by an interceptor handler or by a transformer.
type InterceptorError struct {
	RequestError
}

type detailedError interface {
	error
	Details() *RequestError
}

// ErrorDetails returns the common details of the error, if the err is, or wraps, an error of the taxonomy.
func ErrorDetails(err error) (*RequestError, bool) {
	var detailed detailedError
	if errors.As(err, &detailed) {
		return detailed.Details(), true
	}
	return nil, false
}

func newRequestError(cfg request.Config, format string, a ...any) RequestError {
	return RequestError{
		Message: fmt.Sprintf(`request %s "%s" %s`, cfg.MethodOrDefault(), displayURL(cfg), fmt.Sprintf(format, a...)),
		Config:  cfg,
	}
}

// displayURL returns the full URL, or the URL without query, if the params cannot be serialized.
func displayURL(cfg request.Config) string {
	if !request.SupportedParams(cfg.Params) {
		return request.JoinURL(cfg.BaseURL, cfg.URL)
	}
	return cfg.FullURL()
}

func newValidationError(cfg request.Config, err error) *ValidationError {
	e := &ValidationError{RequestError: newRequestError(cfg, "is not valid: %s", err)}
	e.Err = err
	return e
}

func newHTTPStatusError(res *request.Response) *HTTPStatusError {
	statusText := res.StatusText
	if statusText == "" {
		statusText = http.StatusText(res.Status)
	}
	e := &HTTPStatusError{RequestError: newRequestError(res.Config, "failed: %d %s", res.Status, statusText)}
	e.Request = res.Request
	e.Response = res
	return e
}

func newTransportError(cfg request.Config, raw *request.RawError) *TransportError {
	e := &TransportError{RequestError: newRequestError(cfg, "failed: %s", raw.Message)}
	e.Code = raw.Code
	e.Request = raw.Request
	e.Err = raw
	return e
}

func newTimeoutError(cfg request.Config, requestHandle any, err error) *TimeoutError {
	e := &TimeoutError{RequestError: newRequestError(cfg, "failed: %s", err)}
	e.Code = request.CodeTimeout
	e.Request = requestHandle
	e.Err = err
	return e
}

func newInterceptorError(cfg request.Config, err error) *InterceptorError {
	e := &InterceptorError{RequestError: newRequestError(cfg, "failed in interceptor: %s", err)}
	e.Err = err
	return e
}

// isClassified returns true if the error is already a part of the taxonomy, so it is not wrapped again.
func isClassified(err error) bool {
	var detailed detailedError
	return errors.As(err, &detailed) || cancel.IsCancel(err)
}
