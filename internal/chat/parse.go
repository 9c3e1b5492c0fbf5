package chat

import "encoding/json"

// fallbackResponse is used when the body matches none of the known shapes
const fallbackResponse = "unparseable response"

// NormalizeResponse extracts display text from a heterogeneous agent
// response body. Agents do not share one output shape, so the precedence
// below is fixed:
//
//	array:  first element with an "output" field, else the first string
//	        element, else the first element re-encoded as JSON
//	object: first truthy of "output", "response", "message" (non-strings
//	        re-encoded), else the whole object re-encoded as JSON
//	        (empty strings, null, false and 0 fall through to the next key)
//	string: used directly
//	other:  fallback literal
func NormalizeResponse(body []byte) string {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return fallbackResponse
	}

	switch v := data.(type) {
	case []any:
		return normalizeArray(v)
	case map[string]any:
		return normalizeObject(v)
	case string:
		return v
	default:
		return fallbackResponse
	}
}

func normalizeArray(items []any) string {
	if len(items) == 0 {
		return fallbackResponse
	}

	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			if out, present := obj["output"]; present {
				return stringify(out)
			}
		}
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			return s
		}
	}
	return stringify(items[0])
}

func normalizeObject(obj map[string]any) string {
	for _, key := range []string{"output", "response", "message"} {
		if v, ok := obj[key]; ok && truthy(v) {
			return stringify(v)
		}
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return fallbackResponse
	}
	return string(encoded)
}

// truthy reports whether a decoded JSON value counts as present: empty
// strings, null, false and zero do not resolve a key.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}

// stringify renders a decoded JSON value as message text
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fallbackResponse
	}
	return string(encoded)
}
