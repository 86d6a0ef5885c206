package request

import (
	jsonlib "encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// ToFormBody encodes a JSON like map as "application/x-www-form-urlencoded" body.
// Slices are encoded as "key[index]", maps as "key[subKey]", other values are cast to string.
func ToFormBody(in map[string]any) string {
	form := make(url.Values)
	for k, v := range in {
		rv := reflect.ValueOf(v)
		switch {
		case v == nil:
			continue
		case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8:
			for i := range rv.Len() {
				form.Set(fmt.Sprintf("%s[%d]", k, i), castToString(rv.Index(i).Interface()))
			}
		case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
			for _, key := range rv.MapKeys() {
				form.Set(fmt.Sprintf("%s[%s]", k, key.String()), castToString(rv.MapIndex(key).Interface()))
			}
		default:
			form.Set(k, castToString(v))
		}
	}
	return form.Encode()
}

// StructToMap converts a struct to values map.
// Only defined allowedFields are converted.
// If allowedFields = nil, then all fields are exported.
//
// Field name is read from `writeas` tag or from "json" tag as fallback.
// Field with tag `readonly:"true"` is ignored.
// Field with tag `writeoptional` is exported only if value is not empty.
func StructToMap(in any, allowedFields []string) (out map[string]any) {
	out = make(map[string]any)
	structToMap(reflect.ValueOf(in), out, allowedFields)
	return out
}

func structToMap(in reflect.Value, out map[string]any, allowedFields []string) {
	for in.Kind() == reflect.Ptr || in.Kind() == reflect.Interface {
		in = in.Elem()
	}
	t := in.Type()

	allowed := make(map[string]bool)
	for _, field := range allowedFields {
		allowed[field] = true
	}

	for i := range t.NumField() {
		field := t.Field(i)
		fieldValue := in.Field(i)

		// Process embedded type
		if field.Anonymous {
			structToMap(fieldValue, out, allowedFields)
			continue
		}

		// Skip unexported and read-only fields
		if !field.IsExported() || field.Tag.Get("readonly") == "true" {
			continue
		}

		// Skip field with tag `writeoptional:"true"` and empty value
		if field.Tag.Get("writeoptional") == "true" && fieldValue.IsZero() {
			continue
		}

		// Get field name
		var fieldName string
		if v := field.Tag.Get("writeas"); v != "" {
			fieldName = v
		} else if v := strings.Split(field.Tag.Get("json"), ",")[0]; v != "" {
			fieldName = v
		} else {
			fieldName = field.Name
		}

		if fieldName == "-" {
			continue
		}
		if len(allowedFields) > 0 && !allowed[fieldName] {
			continue
		}

		out[fieldName] = fieldValue.Interface()
	}
}

func castToString(v any) string {
	// Ordered map
	if orderedMap, ok := v.(*orderedmap.OrderedMap); ok {
		// Standard json encoding library is used.
		// JsonIter lib returns non-compact JSON,
		// if custom OrderedMap.MarshalJSON method is used.
		if v, err := jsonlib.Marshal(orderedMap); err != nil {
			panic(fmt.Errorf(`cannot cast %T to string %w`, v, err))
		} else {
			return string(v)
		}
	}

	// Other types
	if v, err := cast.ToStringE(v); err == nil {
		return v
	}
	return fmt.Sprint(v)
}
