package interfaces

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DigestAlgorithm names the hash function behind every digest in the system.
// It is recorded in proof artifacts so a verifier knows what to recompute.
const DigestAlgorithm = "sha256"

// Digest is a 32-byte SHA-256 hash. Content digests, metadata digests,
// document IDs and artifact checksums are all digests.
type Digest [32]byte

// ComputeDigest calculates the digest of raw data.
func ComputeDigest(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// NewDigestFromBytes creates a digest from a raw 32-byte slice.
func NewDigestFromBytes(source []byte) (Digest, error) {
	if len(source) != 32 {
		return Digest{}, errors.New("invalid digest length: must be 32 bytes")
	}

	var d Digest
	copy(d[:], source)
	return d, nil
}

// NewDigestFromHex creates a digest from a 64-character hex string.
func NewDigestFromHex(source string) (Digest, error) {
	// Remove 0x prefix if present
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return Digest{}, errors.New("invalid digest length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var d Digest
	copy(d[:], raw)
	return d, nil
}

// String returns hex representation.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the raw 32-byte hash.
func (d Digest) Bytes() []byte {
	return d[:]
}

// Equal compares two digests.
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d[:], other[:])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalJSON encodes the digest as a fixed-length hex string.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a fixed-length hex string.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := NewDigestFromHex(s)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

// DocumentID is the unique identity of one (content, metadata) pair. It is
// derived from digests alone, never assigned by a counter or clock, so
// independent parties computing it from the same inputs always agree.
type DocumentID = Digest

// DeriveDocumentID computes a document identity from its content and metadata
// digests. The content digest is hashed first, then the metadata digest;
// every component that derives identities depends on this order.
func DeriveDocumentID(contentDigest, metadataDigest Digest) DocumentID {
	h := sha256.New()
	h.Write(contentDigest[:])
	h.Write(metadataDigest[:])

	var id DocumentID
	copy(id[:], h.Sum(nil))
	return id
}

// Signature is a secp256k1 signature in [R || S || V] format, 65 bytes, hex
// encoded in JSON. Length is checked where the signature is consumed rather
// than at parse time, so a malformed signature surfaces as a verification
// failure instead of a decode error.
type Signature []byte

// String returns hex representation.
func (s Signature) String() string {
	return hex.EncodeToString(s)
}

// MarshalJSON encodes the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a hex string.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(str, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}

	*s = raw
	return nil
}

// LocatorSchemes lists the URI schemes content can be retrieved from.
var LocatorSchemes = []string{"file", "ipfs", "s3", "vault", "http", "https"}

// ContentLocator is an opaque reference to externally stored bytes: where to
// fetch them and which digest the fetched bytes must have. Locators are
// immutable once issued by the storage collaborator.
type ContentLocator struct {
	URI           string `json:"uri"`
	ContentDigest Digest `json:"content_digest"`
}

// NewContentLocator creates a locator with URI and digest validation.
func NewContentLocator(uri string, contentDigest Digest) (ContentLocator, error) {
	loc := ContentLocator{URI: uri, ContentDigest: contentDigest}
	if err := loc.Validate(); err != nil {
		return ContentLocator{}, err
	}
	return loc, nil
}

// Validate checks that the URI parses with a supported scheme and that the
// expected content digest is set.
func (loc ContentLocator) Validate() error {
	parsed, err := url.Parse(loc.URI)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}

	supported := false
	for _, scheme := range LocatorSchemes {
		if parsed.Scheme == scheme {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocator, parsed.Scheme)
	}

	if loc.ContentDigest.IsZero() {
		return fmt.Errorf("%w: missing content digest", ErrInvalidLocator)
	}

	return nil
}

// Scheme returns the URI scheme, or an empty string if the URI does not parse.
func (loc ContentLocator) Scheme() string {
	parsed, err := url.Parse(loc.URI)
	if err != nil {
		return ""
	}
	return parsed.Scheme
}

// String returns the locator URI.
func (loc ContentLocator) String() string {
	return loc.URI
}
