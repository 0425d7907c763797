// Package codec implements the structural value encoding shared by every
// key/value backend and by the default (key,value) relational layout.
// Values are encoded as JSON with a tagged wrapper for dates so they
// survive round-trips through text-only stores.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Date values are wrapped as {"__type":"Date","value":"<RFC 3339>"} so
// the decoder can tell them apart from plain strings and maps.
const dateTag = "Date"

const (
	tagField   = "__type"
	valueField = "value"
)

// Encode serializes a structural value: strings, booleans, integral and
// floating numbers, nil, time.Time, and arbitrarily nested maps and
// slices of those. Unsupported types fail rather than encode lossily.
func Encode(v any) ([]byte, error) {
	prepared, err := prepare(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(prepared)
}

// Decode is the inverse of Encode. Integral numbers come back as int64,
// other numbers as float64, and tagged date wrappers as time.Time.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return revive(raw)
}

// prepare converts v into a JSON-encodable shape, replacing time.Time
// values with the tagged wrapper at every nesting level.
func prepare(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return val, nil
	case time.Time:
		return map[string]any{
			tagField:   dateTag,
			valueField: val.UTC().Format(time.RFC3339Nano),
		}, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			p, err := prepare(elem)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			p, err := prepare(elem)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// revive walks decoded JSON, converting json.Number to int64 or float64
// and tagged wrappers back to time.Time.
func revive(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("parsing number %q: %w", val.String(), err)
		}
		return f, nil
	case []any:
		for i, elem := range val {
			r, err := revive(elem)
			if err != nil {
				return nil, err
			}
			val[i] = r
		}
		return val, nil
	case map[string]any:
		if tag, ok := val[tagField].(string); ok && tag == dateTag && len(val) == 2 {
			if iso, ok := val[valueField].(string); ok {
				t, err := time.Parse(time.RFC3339Nano, iso)
				if err != nil {
					return nil, fmt.Errorf("parsing date %q: %w", iso, err)
				}
				return t, nil
			}
		}
		for k, elem := range val {
			r, err := revive(elem)
			if err != nil {
				return nil, err
			}
			val[k] = r
		}
		return val, nil
	default:
		return val, nil
	}
}
