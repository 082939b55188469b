package row

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed hashing. The version suffix enables
// future algorithm migration without colliding with old values.
const (
	DomainConfig = "sectional/config/v1"
	DomainAttrs  = "sectional/attrs/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigSignatureFields is the hashed material of a controller
// configuration. Two controllers with equal signatures share layout cache
// compatibility; any field change invalidates a persisted layout.
type ConfigSignatureFields struct {
	Entity          string
	Predicate       string
	SortKeys        []string
	SortAscending   []bool
	SectionKeyPath  string
	CollationLocale string
}

// ConfigSignature computes the content-addressed signature of a controller
// configuration.
func ConfigSignature(f ConfigSignatureFields) (string, error) {
	obj := map[string]any{
		"entity":           f.Entity,
		"predicate":        f.Predicate,
		"sort_keys":        toAnySlice(f.SortKeys),
		"sort_ascending":   boolsToAny(f.SortAscending),
		"section_key_path": f.SectionKeyPath,
		"locale":           f.CollationLocale,
	}
	data, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("config signature: %w", err)
	}
	return hashWithDomain(DomainConfig, data), nil
}

// AttrDigest computes the tracked-attribute digest for an object. The keys
// are attribute names; sort-descriptor attributes should be excluded by the
// caller (their changes are expressed through SortValues, not the digest).
func AttrDigest(attrs map[string]SortValue) (string, error) {
	obj := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch v.Kind {
		case SortString:
			obj[k] = v.Str
		case SortInt:
			obj[k] = v.Int
		case SortFloat:
			// Floats are hashed via their shortest round-trip decimal form
			// so equal values always digest identically.
			obj[k] = strconv.FormatFloat(v.F, 'g', -1, 64)
		case SortBool:
			obj[k] = v.Bool
		default:
			return "", fmt.Errorf("attr digest: attribute %q has invalid kind %d", k, v.Kind)
		}
	}
	data, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("attr digest: %w", err)
	}
	return hashWithDomain(DomainAttrs, data), nil
}

// marshalCanonical produces deterministic JSON for hashing: object keys
// sorted bytewise, strings NFC normalized, no HTML escaping. This is the
// only serialization that may feed hashWithDomain.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case int:
		return []byte(strconv.Itoa(val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, fmt.Errorf("object key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// no HTML escaping (<, >, & stay literal).
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}
	return result, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func boolsToAny(bs []bool) []any {
	out := make([]any, len(bs))
	for i, b := range bs {
		out[i] = b
	}
	return out
}
