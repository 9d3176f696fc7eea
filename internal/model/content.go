package model

import (
	"bytes"
	"encoding/json"
)

// DecodeContent decodes a JSON todo content.
// Integers are kept as int64 so they survive the storage codecs without losing precision.
func DecodeContent(data []byte) (any, error) {
	var content any
	if err := unmarshalNumbers(data, &content); err != nil {
		return nil, err
	}
	return NormalizeNumbers(content), nil
}

// NormalizeNumbers replaces the json.Number values of a decoded document
// by int64 when they are integers, by float64 otherwise.
// Numbers out of the float64 range are left untouched.
func NormalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = NormalizeNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = NormalizeNumbers(e)
		}
		return v
	default:
		return v
	}
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
