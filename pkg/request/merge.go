package request

// strategy resolves one field from the base and the override value.
// An undefined value is nil. The nil result means the field is undefined in the merged Config.
type strategy func(base, override any) any

// strategies maps field names to merge strategies, fields not listed use the defaultStrategy.
var strategies = map[string]strategy{ //nolint:gochecknoglobals
	// Headers from the defaults and from the request are combined.
	FieldHeaders: deepMergeStrategy,
	// These fields describe one call, they are never inherited from the defaults.
	FieldURL:    overrideOnlyStrategy,
	FieldParams: overrideOnlyStrategy,
	FieldData:   overrideOnlyStrategy,
}

// Merge combines the base Config, usually the client defaults, with the override Config.
// The inputs are not modified, maps merged by the deep merge strategy are copied.
//
// Strategies:
//   - headers: maps are merged recursively, override values win.
//   - url, params, data: taken from the override only, even if the base defines them.
//   - other fields, including extensions: override value if defined, otherwise the base value.
func Merge(base, override Config) Config {
	baseFields := base.Fields()
	overrideFields := override.Fields()
	merged := make(map[string]any, len(baseFields)+len(overrideFields))

	mergeField := func(key string) {
		strat, found := strategies[key]
		if !found {
			strat = defaultStrategy
		}
		if v := strat(baseFields[key], overrideFields[key]); v != nil {
			merged[key] = v
		}
	}

	// Keys defined by the override
	for key := range overrideFields {
		mergeField(key)
	}

	// Keys defined only by the base
	for key := range baseFields {
		if _, done := overrideFields[key]; !done {
			mergeField(key)
		}
	}

	return FromFields(merged)
}

func defaultStrategy(base, override any) any {
	if override != nil {
		return override
	}
	return base
}

func overrideOnlyStrategy(_, override any) any {
	return override
}

func deepMergeStrategy(base, override any) any {
	if overrideMap, ok := plainMap(override); ok {
		baseMap, _ := plainMap(base)
		return DeepMerge(baseMap, overrideMap)
	} else if override != nil {
		return override
	} else if baseMap, ok := plainMap(base); ok {
		// Copy, so modification of the merged value cannot modify the base
		return DeepMerge(baseMap)
	}
	return base
}

// DeepMerge returns a new map with all maps merged, values from later maps win.
// Nested maps are merged recursively and copied, the inputs are not modified.
func DeepMerge(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for key, value := range m {
			if valueMap, ok := plainMap(value); ok {
				if existing, ok := out[key].(map[string]any); ok {
					out[key] = DeepMerge(existing, valueMap)
				} else {
					out[key] = DeepMerge(valueMap)
				}
			} else {
				out[key] = value
			}
		}
	}
	return out
}

// plainMap returns the value as map[string]any, if it is a plain key-value map.
func plainMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case map[string]string:
		if m == nil {
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}
