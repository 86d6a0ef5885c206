package request_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/stretchr/testify/assert"

	"github.com/keboola/go-httpchain/pkg/request"
)

type userParams struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	private string
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	date := time.Date(2020, 1, 2, 3, 4, 5, 6000000, time.FixedZone("CET", 3600))
	cases := []struct {
		name     string
		url      string
		params   any
		expected string
	}{
		{name: "no params", url: "http://x", params: nil, expected: "http://x"},
		{name: "empty params", url: "http://x", params: map[string]any{}, expected: "http://x"},
		{name: "sequence", url: "http://x", params: map[string]any{"a": []int{1, 2}}, expected: "http://x?a[]=1&a[]=2"},
		{name: "existing query", url: "http://x?y=1", params: map[string]any{"z": 2}, expected: "http://x?y=1&z=2"},
		{name: "sorted keys", url: "/foo", params: map[string]string{"b": "2", "a": "1"}, expected: "/foo?a=1&b=2"},
		{name: "nil skipped", url: "/foo", params: map[string]any{"a": nil, "b": (*int)(nil), "c": "x"}, expected: "/foo?c=x"},
		{name: "only nil", url: "/foo", params: map[string]any{"a": nil}, expected: "/foo"},
		{name: "date", url: "/foo", params: map[string]any{"d": date}, expected: "/foo?d=2020-01-02T02:04:05.006Z"},
		{name: "date pointer", url: "/foo", params: map[string]any{"d": &date}, expected: "/foo?d=2020-01-02T02:04:05.006Z"},
		{name: "map as JSON", url: "/foo", params: map[string]any{"f": map[string]any{"b": 2, "a": "x"}}, expected: `/foo?f=%7B%22a%22:%22x%22,%22b%22:2%7D`},
		{name: "sequence of maps", url: "/foo", params: map[string]any{"f": []any{map[string]any{"a": 1}}}, expected: `/foo?f[]=%7B%22a%22:1%7D`},
		{name: "scalars", url: "/foo", params: map[string]any{"b": true, "f": 1.5, "i": -3}, expected: "/foo?b=true&f=1.5&i=-3"},
		{name: "bytes are not a sequence", url: "/foo", params: map[string]any{"b": []byte("abc")}, expected: "/foo?b=abc"},
		{name: "kept characters", url: "/foo", params: map[string]any{"q": "a b@c:d$e,f[g]"}, expected: "/foo?q=a+b@c:d$e,f[g]"},
		{name: "unreserved characters", url: "/foo", params: map[string]any{"q": "-_.!~*'()"}, expected: "/foo?q=-_.!~*'()"},
		{name: "escaped characters", url: "/foo", params: map[string]any{"q": "a/b?c&d=e#f%g+h"}, expected: "/foo?q=a%2Fb%3Fc%26d%3De%23f%25g%2Bh"},
		{name: "unicode", url: "/foo", params: map[string]any{"q": "čaj"}, expected: "/foo?q=%C4%8Daj"},
		{name: "escaped key", url: "/foo", params: map[string]any{"a b/c": "1"}, expected: "/foo?a+b%2Fc=1"},
		{name: "url values", url: "/foo", params: url.Values{"b": {"1"}, "a": {"x", "y"}}, expected: "/foo?a[]=x&a[]=y&b[]=1"},
		{name: "struct", url: "/foo", params: userParams{Name: "John Doe", Age: 30, private: "x"}, expected: "/foo?age=30&name=John+Doe"},
		{name: "struct pointer", url: "/foo", params: &userParams{Name: "Jane"}, expected: "/foo?age=0&name=Jane"},
		{
			name: "ordered map keeps order",
			url:  "/foo",
			params: orderedmap.FromPairs([]orderedmap.Pair{
				{Key: "z", Value: 1},
				{Key: "a", Value: 2},
				{Key: "m", Value: nil},
			}),
			expected: "/foo?z=1&a=2",
		},
		{
			name: "nested ordered map",
			url:  "/foo",
			params: map[string]any{"f": orderedmap.FromPairs([]orderedmap.Pair{
				{Key: "z", Value: 1},
				{Key: "a", Value: 2},
			})},
			expected: `/foo?f=%7B%22z%22:1,%22a%22:2%7D`,
		},
		{name: "fragment without params", url: "/foo#bar", params: map[string]any{}, expected: "/foo#bar"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, request.BuildURL(tc.url, tc.params))
		})
	}
}

// TestBuildURL_FragmentDropped documents a known gap:
// the fragment is dropped, it is not re-appended after the query string.
func TestBuildURL_FragmentDropped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://x/path?a=1", request.BuildURL("http://x/path#section", map[string]any{"a": 1}))
	assert.Equal(t, "http://x/path?y=1&a=1", request.BuildURL("http://x/path?y=1#section", map[string]any{"a": 1}))
}

func TestBuildURL_UnexpectedType(t *testing.T) {
	t.Parallel()
	assert.PanicsWithError(t, "unexpected params type int", func() {
		request.BuildURL("/foo", 123)
	})
}

func TestConfig_FullURL(t *testing.T) {
	t.Parallel()

	cfg := request.Config{BaseURL: "https://example.com/api", URL: "/users", Params: map[string]any{"ids": []string{"1", "2"}}}
	assert.Equal(t, "https://example.com/api/users?ids[]=1&ids[]=2", cfg.FullURL())
}

func TestSupportedParams(t *testing.T) {
	t.Parallel()
	assert.True(t, request.SupportedParams(nil))
	assert.True(t, request.SupportedParams(map[string]any{}))
	assert.True(t, request.SupportedParams(map[string]int{}))
	assert.True(t, request.SupportedParams(url.Values{}))
	assert.True(t, request.SupportedParams(orderedmap.New()))
	assert.True(t, request.SupportedParams(userParams{}))
	assert.True(t, request.SupportedParams(&userParams{}))
	assert.True(t, request.SupportedParams((*userParams)(nil)))
	assert.False(t, request.SupportedParams(123))
	assert.False(t, request.SupportedParams("a=b"))
	assert.False(t, request.SupportedParams(map[int]string{}))
	assert.False(t, request.SupportedParams([]string{"a"}))
}
