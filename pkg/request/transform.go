package request

import (
	"bytes"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
)

const (
	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json;charset=utf-8"
	ContentTypeForm   = "application/x-www-form-urlencoded"
)

// DefaultTransformRequest encodes a plain object (map, struct, slice) as JSON
// and sets the Content-Type header, if it is not set.
// If the Content-Type is already set to a form type, a map is encoded as a form body.
// Other data, for example a string, []byte or an io.Reader, is returned unchanged.
func DefaultTransformRequest(data any, headers map[string]any) (any, error) {
	if !isBodyObject(data) {
		return data, nil
	}

	contentType, found := HeaderValue(headers, ContentTypeHeader)
	if found {
		if str, ok := contentType.(string); ok && strings.HasPrefix(str, ContentTypeForm) {
			if m, ok := plainMap(data); ok {
				return ToFormBody(m), nil
			}
		}
	} else if headers != nil {
		headers[ContentTypeHeader] = ContentTypeJSON
	}

	if m, ok := data.(*orderedmap.OrderedMap); ok {
		return castToString(m), nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(body), nil
}

// DefaultTransformResponse attempts to decode a string or []byte body as JSON.
// If the body is not a valid JSON, it is returned unchanged.
func DefaultTransformResponse(data any, _ http.Header) (any, error) {
	var raw []byte
	switch v := data.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return data, nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return data, nil //nolint:nilerr
	}
	return out, nil
}

// ApplyRequestTransformers calls the transformers in order.
func ApplyRequestTransformers(transformers []RequestTransformer, data any, headers map[string]any) (any, error) {
	for _, fn := range transformers {
		var err error
		if data, err = fn(data, headers); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// ApplyResponseTransformers calls the transformers in order.
func ApplyResponseTransformers(transformers []ResponseTransformer, data any, headers http.Header) (any, error) {
	for _, fn := range transformers {
		var err error
		if data, err = fn(data, headers); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// isBodyObject returns true for values which should be serialized before sending.
func isBodyObject(data any) bool {
	switch data.(type) {
	case nil, string, []byte, io.Reader:
		return false
	case *orderedmap.OrderedMap:
		return true
	}
	t := reflect.TypeOf(data)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}
