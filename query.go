package medcontent

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ArrayFormat selects how array-valued query parameters render.
type ArrayFormat int

const (
	// ArrayBrackets renders key[]=a&key[]=b (the default).
	ArrayBrackets ArrayFormat = iota
	// ArrayComma renders key=a,b.
	ArrayComma
	// ArrayRepeat renders key=a&key=b.
	ArrayRepeat
)

// BuildOptions configures query string construction.
type BuildOptions struct {
	ArrayFormat ArrayFormat
}

// BuildQueryString renders params as a query string without the leading "?".
// Keys with nil values are omitted; keys render in sorted order so identical
// parameter maps always produce identical strings (cache keys depend on this).
func BuildQueryString(params map[string]any, opts *BuildOptions) string {
	if len(params) == 0 {
		return ""
	}
	format := ArrayBrackets
	if opts != nil {
		format = opts.ArrayFormat
	}

	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pairs []string
	for _, key := range keys {
		value := params[key]
		items, isSlice := toSlice(value)
		if !isSlice {
			pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(formatScalar(value)))
			continue
		}

		switch format {
		case ArrayComma:
			escaped := make([]string, 0, len(items))
			for _, item := range items {
				escaped = append(escaped, url.QueryEscape(formatScalar(item)))
			}
			pairs = append(pairs, url.QueryEscape(key)+"="+strings.Join(escaped, ","))
		case ArrayRepeat:
			for _, item := range items {
				pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(formatScalar(item)))
			}
		default: // ArrayBrackets
			for _, item := range items {
				pairs = append(pairs, url.QueryEscape(key)+"[]="+url.QueryEscape(formatScalar(item)))
			}
		}
	}
	return strings.Join(pairs, "&")
}

// ParseQueryString decodes a query string (with or without a leading "?")
// into a parameter map. Repeated keys and bracketed keys become []string.
func ParseQueryString(query string) map[string]any {
	query = strings.TrimPrefix(query, "?")
	params := make(map[string]any)
	if query == "" {
		return params
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return params
	}

	for key, vals := range values {
		name := strings.TrimSuffix(key, "[]")
		if name != key || len(vals) > 1 {
			existing, _ := params[name].([]string)
			params[name] = append(existing, vals...)
			continue
		}
		params[name] = vals[0]
	}
	return params
}

// BuildURL joins base and endpoint with exactly one path separator regardless
// of trailing/leading slashes on either side, then appends the rendered query
// with "?" or "&" depending on whether base already carries one.
func BuildURL(base, endpoint string, params map[string]any, opts *BuildOptions) string {
	full := strings.TrimRight(base, "/")
	if trimmed := strings.Trim(endpoint, "/"); trimmed != "" {
		full += "/" + trimmed
	}

	query := BuildQueryString(params, opts)
	if query == "" {
		return full
	}
	separator := "?"
	if strings.Contains(full, "?") {
		separator = "&"
	}
	return full + separator + query
}

// SanitizeParams trims string values (dropping ones that trim to empty),
// filters nil elements out of slices (dropping slices that end up empty) and
// passes other scalar values through unchanged.
func SanitizeParams(params map[string]any) map[string]any {
	sanitized := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case nil:
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				sanitized[key] = trimmed
			}
		default:
			if items, isSlice := toSlice(value); isSlice {
				kept := make([]any, 0, len(items))
				for _, item := range items {
					if item != nil {
						kept = append(kept, item)
					}
				}
				if len(kept) > 0 {
					sanitized[key] = kept
				}
				continue
			}
			sanitized[key] = value
		}
	}
	return sanitized
}

// toSlice normalizes any slice or array value to []any.
func toSlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// formatScalar renders a single parameter value the way it should appear in
// a query string.
func formatScalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
