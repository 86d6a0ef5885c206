package counter_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-httpchain/pkg/transport/counter"
)

func TestReadCloser(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		content         string
		readErr         error
		closeErr        error
		expectedReadErr string
		expectedErr     string
	}{
		{name: "empty", content: ""},
		{name: "no error", content: "abcdef"},
		{name: "close error", content: "abcdef", closeErr: errors.New("close error"), expectedErr: "close error"},
		{name: "read error", content: "abcdef", readErr: errors.New("read error"), expectedReadErr: "read error", expectedErr: "read error"},
		{
			name:            "read and close error",
			content:         "abcdef",
			readErr:         errors.New("read error"),
			closeErr:        errors.New("close error"),
			expectedReadErr: "read error",
			expectedErr:     "read error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			r := counter.NewReadCloser(
				&testReader{content: strings.NewReader(tc.content), readErr: tc.readErr, closeErr: tc.closeErr},
				func(bytes int64, err error) {
					calls++
					assert.Equal(t, int64(len(tc.content)), bytes)
					if tc.expectedErr == "" {
						assert.NoError(t, err)
					} else if assert.Error(t, err) {
						assert.Equal(t, tc.expectedErr, err.Error())
					}
				},
			)

			out, err := io.ReadAll(r)
			assert.Equal(t, tc.content, string(out))
			assert.Equal(t, int64(len(tc.content)), r.Bytes())
			if tc.expectedReadErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.expectedReadErr, err.Error())
			}

			// The callback is invoked only once
			err = r.Close()
			_ = r.Close()
			if tc.closeErr == nil {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.closeErr.Error(), err.Error())
			}
			assert.Equal(t, 1, calls)
		})
	}
}

type testReader struct {
	content  io.Reader
	readErr  error
	closeErr error
}

func (r *testReader) Read(p []byte) (n int, err error) {
	n, err = r.content.Read(p)
	if err == nil {
		err = r.readErr
	}
	return n, err
}

func (r *testReader) Close() error {
	return r.closeErr
}
