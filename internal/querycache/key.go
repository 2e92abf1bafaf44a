package querycache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KeyParts are the decoded components of a cache key. The encoded form is
// canonical JSON: object keys sorted, array order preserved, nil fields
// dropped. Callers may persist or compare encoded keys, so the serialization
// is a stable contract.
type KeyParts struct {
	Resource  string              `json:"resource,omitempty"`
	Operation string              `json:"operation,omitempty"`
	Method    string              `json:"method,omitempty"`
	Params    map[string]string   `json:"params,omitempty"`
	Query     map[string][]string `json:"query,omitempty"`
	Body      interface{}         `json:"body,omitempty"`
	Extra     interface{}         `json:"extra,omitempty"`
}

// EncodeKey serializes key parts into their canonical string identity.
// Argument object key order never changes the result.
func EncodeKey(p KeyParts) (string, error) {
	// Round-trip through encoding/json to reduce arbitrary values to plain
	// maps, slices and scalars before canonical writing.
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	var plain interface{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}

	var sb strings.Builder
	writeCanonical(&sb, plain)
	return sb.String(), nil
}

// DecodeKey parses an encoded cache key back into its components.
func DecodeKey(key string) (KeyParts, error) {
	var p KeyParts
	if err := json.Unmarshal([]byte(key), &p); err != nil {
		return KeyParts{}, fmt.Errorf("decode cache key: %w", err)
	}
	return p, nil
}

// writeCanonical emits compact JSON with sorted object keys. Entries whose
// value is nil are dropped; array order is preserved.
func writeCanonical(sb *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k, item := range val {
			if item == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeScalar(sb, k)
			sb.WriteByte(':')
			writeCanonical(sb, val[k])
		}
		sb.WriteByte('}')
	case []interface{}:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')
	default:
		writeScalar(sb, val)
	}
}

func writeScalar(sb *strings.Builder, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		// Unreachable for values produced by json.Unmarshal.
		sb.WriteString("null")
		return
	}
	sb.Write(b)
}
