package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keboola/go-httpchain/pkg/request"
)

// handleSendError converts an error of the http.Client to the *request.RawError.
// Timeouts have the request.CodeTimeout code.
func handleSendError(startedAt time.Time, ownTimeout bool, cfgTimeout, clientTimeout time.Duration, req *http.Request, err error) *request.RawError {
	out := &request.RawError{Request: req, Err: err}

	var netErr net.Error
	switch {
	case ownTimeout && errors.Is(err, context.DeadlineExceeded):
		out.Code = request.CodeTimeout
		out.Message = fmt.Sprintf("timeout of %s exceeded", cfgTimeout)
	case errors.Is(err, context.DeadlineExceeded):
		out.Code = request.CodeTimeout
		if deadline, ok := req.Context().Deadline(); ok {
			out.Message = fmt.Sprintf("timeout after %s", deadline.Sub(startedAt))
		} else {
			out.Message = fmt.Sprintf("timeout after %s", time.Since(startedAt))
		}
	case errors.Is(err, context.Canceled):
		out.Message = fmt.Sprintf("canceled after %s", time.Since(startedAt))
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Code = request.CodeTimeout
		if strings.Contains(err.Error(), "Client.Timeout exceeded") {
			out.Message = fmt.Sprintf("timeout after %s", clientTimeout)
		} else {
			out.Message = fmt.Sprintf("timeout after %s", time.Since(startedAt))
		}
	default:
		// Url error contains method and url, the client adds them
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			out.Message = urlErr.Err.Error()
		} else {
			out.Message = err.Error()
		}
	}
	return out
}
