// Package canonical implements the deterministic serialization behind every
// digest in the system. Canonical form is JSON with object keys recursively
// sorted by their exact key text, no formatting whitespace, UTF-8 strings and
// one fixed textual form per number. Identical logical input always
// canonicalizes to byte-identical output, across restarts and platforms.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// Marshal returns the canonical encoding of v. Values that cannot be
// serialized to JSON, such as channels, functions or NaN floats, fail fast
// with a descriptive error rather than producing a partial encoding.
func Marshal(v any) ([]byte, error) {
	// Round-trip through encoding/json first. The round trip rejects
	// non-serializable values and collapses every number to one normalized
	// textual form.
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not serializable: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(plain, &parsed); err != nil {
		return nil, fmt.Errorf("reparsing serialized value: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, parsed); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		return encodeObject(buf, val)
	case []any:
		return encodeArray(buf, val)
	default:
		// Strings, numbers, booleans and null are already in normal form
		// after the round trip.
		leaf, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encoding value %v: %w", val, err)
		}
		buf.Write(leaf)
		return nil
	}
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		encodedKey, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("encoding key %q: %w", k, err)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')

		if err := encodeValue(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')

	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')

	return nil
}

// MetadataDigest canonicalizes structured metadata and hashes the result.
// The whole derivation runs twice from scratch; the two runs disagreeing
// indicates a canonicalization bug, surfaced as an IntegrityFault that halts
// the pipeline instead of producing an untrustworthy digest.
func MetadataDigest(metadata any) (interfaces.Digest, error) {
	first, err := Marshal(metadata)
	if err != nil {
		return interfaces.Digest{}, err
	}

	second, err := Marshal(metadata)
	if err != nil {
		return interfaces.Digest{}, err
	}

	firstDigest := interfaces.ComputeDigest(first)
	secondDigest := interfaces.ComputeDigest(second)
	if !firstDigest.Equal(secondDigest) {
		return interfaces.Digest{}, &interfaces.IntegrityFault{
			Op:       "metadata digest",
			Expected: firstDigest.String(),
			Actual:   secondDigest.String(),
		}
	}

	return firstDigest, nil
}
