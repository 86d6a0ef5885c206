package request

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// ISOTimeFormat is used to serialize time.Time query parameters, always in UTC.
const ISOTimeFormat = "2006-01-02T15:04:05.000Z"

// keepEscaped lists escape sequences reverted to literal characters by encodeParam.
var keepEscaped = strings.NewReplacer( //nolint:gochecknoglobals
	"%40", "@",
	"%3A", ":",
	"%24", "$",
	"%2C", ",",
	"%20", "+",
	"%5B", "[",
	"%5D", "]",
)

type param struct {
	key   string
	value any
}

// BuildURL serializes params to the query string and appends it to the url.
//
// A nil value is skipped. A slice or an array is expanded to repeated "key[]=value" pairs.
// A time.Time value is serialized in ISOTimeFormat, a map or a struct as JSON,
// other values by their string form.
//
// Keys of maps are sorted, the *orderedmap.OrderedMap keeps its order.
//
// Known limitation: if the url contains a "#fragment" and at least one pair is serialized,
// the fragment is dropped, it is not appended after the query string.
func BuildURL(rawURL string, params any) string {
	var pairs []string
	for _, p := range paramsList(params) {
		if isNil(p.value) {
			continue
		}

		key := p.key
		var values []any
		if isSequence(p.value) {
			key += "[]"
			rv := reflect.ValueOf(p.value)
			for i := range rv.Len() {
				values = append(values, rv.Index(i).Interface())
			}
		} else {
			values = []any{p.value}
		}

		for _, v := range values {
			pairs = append(pairs, encodeParam(key)+"="+encodeParam(serializeParam(v)))
		}
	}

	serialized := strings.Join(pairs, "&")
	if serialized == "" {
		return rawURL
	}

	if hashIndex := strings.IndexByte(rawURL, '#'); hashIndex != -1 {
		rawURL = rawURL[:hashIndex]
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + serialized
	}
	return rawURL + "?" + serialized
}

// SupportedParams returns true, if the params type can be serialized by BuildURL.
// Supported are nil, map with string keys, url.Values, *orderedmap.OrderedMap and struct, or a pointer to them.
func SupportedParams(params any) bool {
	switch params.(type) {
	case nil, *orderedmap.OrderedMap, url.Values:
		return true
	}
	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return (rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String) || rv.Kind() == reflect.Struct
}

// paramsList converts supported params types to an ordered list.
func paramsList(params any) (out []param) {
	switch v := params.(type) {
	case nil:
		return nil
	case *orderedmap.OrderedMap:
		if v == nil {
			return nil
		}
		for _, key := range v.Keys() {
			value, _ := v.Get(key)
			out = append(out, param{key: key, value: value})
		}
		return out
	case url.Values:
		for _, key := range sortedKeys(v) {
			out = append(out, param{key: key, value: v[key]})
		}
		return out
	}

	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch {
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, param{key: key, value: rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).Interface()})
		}
		return out
	case rv.Kind() == reflect.Struct:
		fields := StructToMap(rv.Interface(), nil)
		for _, key := range sortedKeys(fields) {
			out = append(out, param{key: key, value: fields[key]})
		}
		return out
	default:
		panic(fmt.Errorf(`unexpected params type %T`, params))
	}
}

func serializeParam(v any) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case string:
		return value
	case []byte:
		return string(value)
	case *orderedmap.OrderedMap:
		return castToString(value)
	case time.Time:
		return value.UTC().Format(ISOTimeFormat)
	case *time.Time:
		if value != nil {
			return value.UTC().Format(ISOTimeFormat)
		}
	}

	if isPlainObject(v) {
		if bytes, err := json.Marshal(v); err == nil {
			return string(bytes)
		}
	}

	if str, err := cast.ToStringE(v); err == nil {
		return str
	}
	return fmt.Sprint(v)
}

// encodeParam percent-encodes the value as a URI component, see encodeURIComponent,
// but keeps characters from the keepEscaped table literal.
func encodeParam(s string) string {
	return keepEscaped.Replace(encodeURIComponent(s))
}

// encodeURIComponent escapes all bytes except "A-Z a-z 0-9 - _ . ! ~ * ' ( )".
// It differs from the url.QueryEscape, which escapes "! * ' ( )" and encodes space as "+".
func encodeURIComponent(s string) string {
	const upperHex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := range len(s) {
		c := s[i]
		if isURIComponentChar(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
		}
	}
	return b.String()
}

func isURIComponentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func isSequence(v any) bool {
	if _, ok := v.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

// isPlainObject returns true for maps, structs and ordered maps, time.Time is handled separately.
func isPlainObject(v any) bool {
	if _, ok := v.(*orderedmap.OrderedMap); ok {
		return true
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Map || t.Kind() == reflect.Struct
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
