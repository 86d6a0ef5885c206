package request

import (
	"net/http"
	"strings"
)

// HeadersCommon is a section of Config.Headers applied to all methods.
const HeadersCommon = "common"

// headerSections are nested sections of Config.Headers, they are never sent as a header.
var headerSections = map[string]bool{ //nolint:gochecknoglobals
	HeadersCommon: true,
	"get":         true,
	"delete":      true,
	"head":        true,
	"options":     true,
	"post":        true,
	"put":         true,
	"patch":       true,
}

// FlattenHeaders converts Config.Headers to the http.Header for the method.
//
// Headers may contain nested sections: "common" for all methods and a lower-case method name, e.g. "post".
// Priority: top-level values > method section > common section.
// Other nested maps are ignored, a nil value removes the header.
func FlattenHeaders(headers map[string]any, method string) http.Header {
	common, _ := plainMap(headers[HeadersCommon])
	methodSection, _ := plainMap(headers[strings.ToLower(method)])

	flat := make(map[string]any)
	for _, section := range []map[string]any{common, methodSection, headers} {
		for k, v := range section {
			if headerSections[strings.ToLower(k)] {
				continue
			}
			if _, ok := plainMap(v); ok {
				continue
			}
			flat[http.CanonicalHeaderKey(k)] = v
		}
	}

	out := make(http.Header, len(flat))
	for _, k := range sortedKeys(flat) {
		switch v := flat[k].(type) {
		case nil:
			continue
		case []string:
			for _, item := range v {
				out.Add(k, item)
			}
		default:
			out.Set(k, castToString(v))
		}
	}
	return out
}

// HeaderValue returns top-level header value, the key is case-insensitive.
func HeaderValue(headers map[string]any, key string) (any, bool) {
	for _, k := range sortedKeys(headers) {
		if strings.EqualFold(k, key) {
			return headers[k], true
		}
	}
	return nil, false
}

// DeleteHeader removes top-level header from the map, the key is case-insensitive.
func DeleteHeader(headers map[string]any, key string) {
	for k := range headers {
		if strings.EqualFold(k, key) {
			delete(headers, k)
		}
	}
}
