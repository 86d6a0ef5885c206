// Package counter measures a response body read by the transport.
package counter

import (
	"errors"
	"io"
	"sync"
)

// ReadCloser counts bytes read from the wrapped body.
// The OnClose callback is invoked once, on the first Close.
type ReadCloser struct {
	wrapped io.ReadCloser
	onClose OnClose
	once    sync.Once
	bytes   int64
	readErr error
}

type OnClose func(bytes int64, err error)

func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

// Bytes returns number of bytes read so far.
func (w *ReadCloser) Bytes() int64 {
	return w.bytes
}

func (w *ReadCloser) Read(b []byte) (int, error) {
	n, err := w.wrapped.Read(b)
	w.bytes += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		w.readErr = err
	}
	return n, err
}

func (w *ReadCloser) Close() error {
	closeErr := w.wrapped.Close()
	w.once.Do(func() {
		if w.onClose == nil {
			return
		}
		// The read error is usually more useful
		err := w.readErr
		if err == nil {
			err = closeErr
		}
		w.onClose(w.bytes, err)
	})
	return closeErr
}
