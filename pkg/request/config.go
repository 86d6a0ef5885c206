package request

import (
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/keboola/go-httpchain/pkg/cancel"
)

// Names of the Config fields, as used by Fields, FromFields and the merge strategies.
const (
	FieldURL               = "url"
	FieldBaseURL           = "baseURL"
	FieldMethod            = "method"
	FieldData              = "data"
	FieldParams            = "params"
	FieldHeaders           = "headers"
	FieldResponseType      = "responseType"
	FieldTimeout           = "timeout"
	FieldTransformRequest  = "transformRequest"
	FieldTransformResponse = "transformResponse"
	FieldCancelToken       = "cancelToken"
)

// Supported response types.
const (
	ResponseTypeJSON        = "json"
	ResponseTypeText        = "text"
	ResponseTypeArrayBuffer = "arraybuffer"
	ResponseTypeStream      = "stream"
)

// RequestTransformer converts request data before it is passed to the transport.
// The headers map belongs to the request being sent and may be modified.
type RequestTransformer func(data any, headers map[string]any) (any, error)

// ResponseTransformer converts response data received from the transport.
type ResponseTransformer func(data any, headers http.Header) (any, error)

// Config configures one request, or the defaults of a client.
//
// A field is "defined" if it has a non-zero value.
// Undefined fields are resolved by Merge against the client defaults.
type Config struct {
	// URL is absolute, or relative to the BaseURL.
	URL string `validate:"required"`
	// BaseURL is prepended to a relative URL.
	BaseURL string
	// Method is GET if not set.
	Method string `validate:"omitempty,oneof=GET DELETE HEAD OPTIONS POST PUT PATCH"`
	// Data is the request body.
	Data any `validate:"-"`
	// Params are serialized to the query string by BuildURL.
	// Supported types are map[string]any, map[string]string, url.Values, *orderedmap.OrderedMap and structs.
	Params any `validate:"-"`
	// Headers may contain nested maps, see FlattenHeaders.
	Headers map[string]any `validate:"-"`
	// ResponseType is one of json (default), text, arraybuffer and stream.
	ResponseType string `validate:"omitempty,oneof=json text arraybuffer stream"`
	// Timeout of the transport call, no timeout if zero.
	Timeout time.Duration `validate:"gte=0"`
	// TransformRequest functions are applied to the Data in order.
	TransformRequest []RequestTransformer `validate:"-"`
	// TransformResponse functions are applied to the response data in order.
	TransformResponse []ResponseTransformer `validate:"-"`
	// CancelToken cancels the request, if set.
	CancelToken *cancel.Token `validate:"-"`
	// Extensions are caller-defined fields, passed through untouched.
	Extensions map[string]any `validate:"-"`
}

// builtinFields contains names of fields that cannot be used as extensions.
var builtinFields = map[string]bool{ //nolint:gochecknoglobals
	FieldURL:               true,
	FieldBaseURL:           true,
	FieldMethod:            true,
	FieldData:              true,
	FieldParams:            true,
	FieldHeaders:           true,
	FieldResponseType:      true,
	FieldTimeout:           true,
	FieldTransformRequest:  true,
	FieldTransformResponse: true,
	FieldCancelToken:       true,
}

// Fields returns defined fields keyed by their name.
// Extension keys colliding with a built-in field name are skipped.
func (c Config) Fields() map[string]any {
	out := make(map[string]any)
	if c.URL != "" {
		out[FieldURL] = c.URL
	}
	if c.BaseURL != "" {
		out[FieldBaseURL] = c.BaseURL
	}
	if c.Method != "" {
		out[FieldMethod] = c.Method
	}
	if c.Data != nil {
		out[FieldData] = c.Data
	}
	if c.Params != nil {
		out[FieldParams] = c.Params
	}
	if c.Headers != nil {
		out[FieldHeaders] = c.Headers
	}
	if c.ResponseType != "" {
		out[FieldResponseType] = c.ResponseType
	}
	if c.Timeout != 0 {
		out[FieldTimeout] = c.Timeout
	}
	if c.TransformRequest != nil {
		out[FieldTransformRequest] = c.TransformRequest
	}
	if c.TransformResponse != nil {
		out[FieldTransformResponse] = c.TransformResponse
	}
	if c.CancelToken != nil {
		out[FieldCancelToken] = c.CancelToken
	}
	for k, v := range c.Extensions {
		if v != nil && !builtinFields[k] {
			out[k] = v
		}
	}
	return out
}

// FromFields is the inverse of the Config.Fields method.
// Values of an unexpected type are ignored.
func FromFields(fields map[string]any) Config {
	var c Config
	for k, v := range fields {
		switch k {
		case FieldURL:
			c.URL, _ = v.(string)
		case FieldBaseURL:
			c.BaseURL, _ = v.(string)
		case FieldMethod:
			c.Method, _ = v.(string)
		case FieldData:
			c.Data = v
		case FieldParams:
			c.Params = v
		case FieldHeaders:
			c.Headers, _ = v.(map[string]any)
		case FieldResponseType:
			c.ResponseType, _ = v.(string)
		case FieldTimeout:
			c.Timeout, _ = v.(time.Duration)
		case FieldTransformRequest:
			c.TransformRequest, _ = v.([]RequestTransformer)
		case FieldTransformResponse:
			c.TransformResponse, _ = v.([]ResponseTransformer)
		case FieldCancelToken:
			c.CancelToken, _ = v.(*cancel.Token)
		default:
			if v == nil {
				continue
			}
			if c.Extensions == nil {
				c.Extensions = make(map[string]any)
			}
			c.Extensions[k] = v
		}
	}
	return c
}

// WithHeader returns a copy of the Config with the top-level header set.
func (c Config) WithHeader(key, value string) Config {
	headers := make(map[string]any, len(c.Headers)+1)
	maps.Copy(headers, c.Headers)
	headers[key] = value
	c.Headers = headers
	return c
}

// WithExtension returns a copy of the Config with the extension field set.
func (c Config) WithExtension(key string, value any) Config {
	extensions := make(map[string]any, len(c.Extensions)+1)
	maps.Copy(extensions, c.Extensions)
	extensions[key] = value
	c.Extensions = extensions
	return c
}

// Extension returns value of the extension field, if any.
func (c Config) Extension(key string) (any, bool) {
	v, ok := c.Extensions[key]
	return v, ok
}

// MethodOrDefault returns the upper-cased method, GET if it is not set.
func (c Config) MethodOrDefault() string {
	if c.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.Method)
}

// FullURL returns the URL joined with the BaseURL, with the Params serialized to the query string.
func (c Config) FullURL() string {
	return BuildURL(JoinURL(c.BaseURL, c.URL), c.Params)
}

// JoinURL joins a relative url with the baseURL.
// An absolute url is returned unchanged.
func JoinURL(baseURL, url string) string {
	if baseURL == "" || isAbsoluteURL(url) {
		return url
	}
	if url == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(url, "/")
}

// isAbsoluteURL returns true for "scheme://..." and protocol relative "//..." URLs.
func isAbsoluteURL(url string) bool {
	if strings.HasPrefix(url, "//") {
		return true
	}
	schemeEnd := strings.Index(url, "://")
	if schemeEnd <= 0 {
		return false
	}
	for i, r := range url[:schemeEnd] {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isLetter && (i == 0 || !(r >= '0' && r <= '9') && r != '+' && r != '-' && r != '.') {
			return false
		}
	}
	return true
}
