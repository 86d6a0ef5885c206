package cancel_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-httpchain/pkg/cancel"
)

func TestNewToken_ExecutorCalledImmediately(t *testing.T) {
	t.Parallel()

	called := false
	token := cancel.NewToken(func(cancelFn cancel.Func) {
		called = true
	})
	assert.True(t, called)
	assert.NoError(t, token.ThrowIfRequested())
	assert.Nil(t, token.Reason())
}

func TestNewToken_NilExecutor(t *testing.T) {
	t.Parallel()
	assert.PanicsWithError(t, "executor must be defined", func() {
		cancel.NewToken(nil)
	})
}

func TestSource_CancelOnce(t *testing.T) {
	t.Parallel()

	token, cancelFn := cancel.Source()
	cancelFn("first")
	cancelFn("second")

	select {
	case <-token.Done():
	default:
		t.Fatal("token should be done")
	}

	err := token.ThrowIfRequested()
	require.Error(t, err)
	assert.Equal(t, "first", err.Error())
	assert.True(t, cancel.IsCancel(err))
	assert.Equal(t, &cancel.Cancel{Message: "first"}, token.Reason())
}

func TestSource_ConcurrentCancel(t *testing.T) {
	t.Parallel()

	token, cancelFn := cancel.Source()
	wg := &sync.WaitGroup{}
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancelFn(fmt.Sprintf("cancel %d", i))
		}()
	}
	wg.Wait()

	reason := token.Reason()
	require.NotNil(t, reason)
	assert.Regexp(t, `^cancel \d+$`, reason.Message)
	assert.Same(t, reason, token.Reason())
}

func TestCancel_DefaultMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "request canceled", (&cancel.Cancel{}).Error())
}

func TestIsCancel(t *testing.T) {
	t.Parallel()
	assert.True(t, cancel.IsCancel(&cancel.Cancel{}))
	assert.True(t, cancel.IsCancel(fmt.Errorf("wrapped: %w", &cancel.Cancel{Message: "foo"})))
	assert.False(t, cancel.IsCancel(errors.New("foo")))
	assert.False(t, cancel.IsCancel(context.Canceled))
	assert.False(t, cancel.IsCancel(nil))
}

func TestNilToken(t *testing.T) {
	t.Parallel()

	var token *cancel.Token
	assert.Nil(t, token.Done())
	assert.Nil(t, token.Reason())
	assert.NoError(t, token.ThrowIfRequested())

	ctx, stop := token.Context(context.Background())
	defer stop()
	assert.NoError(t, ctx.Err())
}

func TestToken_Context(t *testing.T) {
	t.Parallel()

	token, cancelFn := cancel.Source()
	ctx, stop := token.Context(context.Background())
	defer stop()
	assert.NoError(t, ctx.Err())

	cancelFn("stop it")
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	cause := context.Cause(ctx)
	assert.True(t, cancel.IsCancel(cause))
	assert.Equal(t, "stop it", cause.Error())
}

func TestToken_Context_Stop(t *testing.T) {
	t.Parallel()

	token, cancelFn := cancel.Source()
	ctx, stop := token.Context(context.Background())
	stop()
	<-ctx.Done()
	assert.False(t, cancel.IsCancel(context.Cause(ctx)))

	// Token is independent of the context
	cancelFn("later")
	assert.Error(t, token.ThrowIfRequested())
}
