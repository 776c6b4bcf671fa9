package output

import "fmt"

// NormalizeJSONValue converts values produced by a generic CBOR decode
// (map[interface{}]interface{}, nested slices) into shapes encoding/json
// accepts.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	default:
		return v
	}
}
