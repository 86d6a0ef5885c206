package request

import (
	"fmt"
	"net/http"
)

// CodeTimeout is the RawError code of a transport call that exceeded the Config.Timeout.
const CodeTimeout = "ECONNABORTED"

// RawResponse is returned by a transport, the client wraps it to the Response.
type RawResponse struct {
	Data       any
	Status     int
	StatusText string
	Headers    http.Header
	// Request is an opaque handle of the transport request, for example *http.Request.
	Request any
}

// RawError is returned by a transport if the request failed before a response was received.
type RawError struct {
	Message string
	// Code is CodeTimeout for timeouts, otherwise it may be empty.
	Code string
	// Request is an opaque handle of the transport request, if it was created.
	Request any
	// Response is set if the failure occurred after the response headers were received.
	Response *RawResponse
	Err      error
}

func (e *RawError) Error() string {
	return e.Message
}

func (e *RawError) Unwrap() error {
	return e.Err
}

// Timeout returns true if the transport call exceeded the Config.Timeout.
func (e *RawError) Timeout() bool {
	return e.Code == CodeTimeout
}

// Response is the envelope of a completed HTTP exchange.
type Response struct {
	Data       any
	Status     int
	StatusText string
	Headers    http.Header
	// Config that produced the response.
	Config Config
	// Request is an opaque handle of the transport request, for diagnostic only.
	Request any
}

// NewResponse wraps the RawResponse.
func NewResponse(cfg Config, raw *RawResponse) *Response {
	headers := raw.Headers
	if headers == nil {
		headers = make(http.Header)
	}
	return &Response{
		Data:       raw.Data,
		Status:     raw.Status,
		StatusText: raw.StatusText,
		Headers:    headers,
		Config:     cfg,
		Request:    raw.Request,
	}
}

// IsSuccess method returns true if HTTP status `code >= 200 and <= 299` otherwise false.
func (r *Response) IsSuccess() bool {
	return r.Status > 199 && r.Status < 300
}

func (r *Response) String() string {
	return fmt.Sprintf(`%s "%s" | %d %s`, r.Config.MethodOrDefault(), r.Config.FullURL(), r.Status, r.StatusText)
}
