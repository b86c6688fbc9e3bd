// Package hash produces stable digests of report data. Maps are serialised
// with sorted keys so equal values always hash identically.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

const prefix = "sha256:"

// CanonicalJSON marshals v with sorted object keys, no insignificant
// whitespace and numbers in their shortest form.
func CanonicalJSON(v any) ([]byte, error) {
	input, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}
	var buf bytes.Buffer
	if err := encode(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HashCanonicalJSON returns the sha256 digest of v's canonical form along
// with the canonical bytes.
func HashCanonicalJSON(v any) (string, []byte, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", nil, err
	}
	return Bytes(canonical), canonical, nil
}

// Bytes returns the prefixed sha256 digest of raw.
func Bytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return prefix + hex.EncodeToString(sum[:])
}

func encode(buf *bytes.Buffer, v any) error {
	switch vv := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(vv))
	case string:
		b, err := json.Marshal(vv)
		if err != nil {
			return err
		}
		buf.Write(b)
	case json.Number:
		f, err := strconv.ParseFloat(vv.String(), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", vv, err)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case []any:
		buf.WriteByte('[')
		for i, item := range vv {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, vv[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported canonical value %T", v)
	}
	return nil
}
