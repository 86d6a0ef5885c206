// Package cancel provides a one-shot cooperative cancellation signal for requests.
//
// A Token is attached to the request config. The client checks the token before the request is sent,
// and races the transport call against the token. The request fails with a *Cancel error, see IsCancel.
//
//	token, cancelFn := cancel.Source()
//	go func() { <-time.After(time.Second); cancelFn("too slow") }()
//	_, err := c.Get(ctx, "/users", request.Config{CancelToken: token})
//	if cancel.IsCancel(err) { ... }
package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const defaultMessage = "request canceled"

// Cancel is the reason of a canceled request.
type Cancel struct {
	Message string
}

func (c *Cancel) Error() string {
	if c.Message == "" {
		return defaultMessage
	}
	return c.Message
}

// IsCancel returns true if the error is, or wraps, a *Cancel.
func IsCancel(err error) bool {
	var c *Cancel
	return errors.As(err, &c)
}

// Func cancels the Token, the first call wins, later calls are no-op.
type Func func(message string)

// Token is a cancellation signal, it is resolved at most once.
// A nil *Token is valid and never canceled.
type Token struct {
	once   sync.Once
	done   chan struct{}
	reason *Cancel
}

// NewToken creates a Token and immediately calls the executor with the cancel function.
func NewToken(executor func(cancel Func)) *Token {
	if executor == nil {
		panic(fmt.Errorf("executor must be defined"))
	}
	t := &Token{done: make(chan struct{})}
	executor(t.cancel)
	return t
}

// Source creates a Token together with its cancel function.
func Source() (*Token, Func) {
	var fn Func
	token := NewToken(func(cancel Func) {
		fn = cancel
	})
	return token, fn
}

func (t *Token) cancel(message string) {
	t.once.Do(func() {
		t.reason = &Cancel{Message: message}
		close(t.done)
	})
}

// Done returns a channel closed when the Token is canceled.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// Reason returns the *Cancel if the Token is canceled, otherwise nil.
func (t *Token) Reason() *Cancel {
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return t.reason
	default:
		return nil
	}
}

// ThrowIfRequested returns the *Cancel error, if the Token is already canceled.
func (t *Token) ThrowIfRequested() error {
	if reason := t.Reason(); reason != nil {
		return reason
	}
	return nil
}

// Context returns a child context canceled together with the Token.
// The context.Cause of the context is then the *Cancel.
// The stop function releases resources, it must be called when the context is no more needed.
func (t *Token) Context(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancelCtx := context.WithCancelCause(parent)
	if t == nil {
		return ctx, func() { cancelCtx(context.Canceled) }
	}
	go func() {
		select {
		case <-t.done:
			cancelCtx(t.reason)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancelCtx(context.Canceled) }
}
