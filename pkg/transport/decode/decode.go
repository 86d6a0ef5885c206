// Package decode removes the Content-Encoding of a response body.
package decode

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding lists encodings supported by the Decode function.
const AcceptEncoding = "gzip, deflate, br"

// Decode wraps the body by a decoder of the content encoding.
// Closing the result closes also the body.
// An unknown or empty encoding returns the body unchanged.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
		return &decoder{Reader: r, closers: []io.Closer{r, body}}, nil
	case "deflate":
		r := flate.NewReader(body)
		return &decoder{Reader: r, closers: []io.Closer{r, body}}, nil
	case "br":
		return &decoder{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	default:
		return body, nil
	}
}

type decoder struct {
	io.Reader
	closers []io.Closer
}

func (d *decoder) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
