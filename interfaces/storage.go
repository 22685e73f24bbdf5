package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// StorageBackendLocation represents URI for a configured storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("invalid URI format: %w", err)
	}

	// Validate scheme is supported
	scheme := parsed.Scheme
	switch scheme {
	case "file", "s3", "ipfs", "vault", "http", "https":
		// Valid scheme
	default:
		return StorageBackendLocation{}, fmt.Errorf("unsupported storage scheme: %s", scheme)
	}

	// Parse authentication info if present
	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// IsFile checks if this is a file system storage location.
func (loc StorageBackendLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// IsS3 checks if this is an S3 storage location.
func (loc StorageBackendLocation) IsS3() bool {
	return loc.Scheme == "s3"
}

// IsIPFS checks if this is an IPFS storage location.
func (loc StorageBackendLocation) IsIPFS() bool {
	return loc.Scheme == "ipfs"
}

// IsVault checks if this is a Vault storage location.
func (loc StorageBackendLocation) IsVault() bool {
	return loc.Scheme == "vault"
}

// IsHTTP checks if this is a plain HTTP storage location.
func (loc StorageBackendLocation) IsHTTP() bool {
	return loc.Scheme == "http" || loc.Scheme == "https"
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when a locator's content cannot be found in the source.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a content source is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("content source unavailable")

	// ErrInvalidLocator is returned when a content locator is malformed or its
	// scheme is unsupported.
	ErrInvalidLocator = errors.New("invalid content locator")

	// ErrDigestMismatch is returned when fetched bytes do not hash to the
	// digest the locator pins.
	ErrDigestMismatch = errors.New("content does not match locator digest")

	// ErrCannotServe is returned when no configured source handles a locator's scheme.
	ErrCannotServe = errors.New("no source serves locator")

	// ErrProofNotFound is returned when no artifact is stored for a document ID.
	ErrProofNotFound = errors.New("proof artifact not found")
)

// ContentSource retrieves externally stored document bytes.
type ContentSource interface {
	// Fetch retrieves the bytes a locator points at, as stored. Digest
	// validation against the locator is the caller's job.
	Fetch(ctx context.Context, locator ContentLocator) ([]byte, error)

	// CanServe reports whether this source handles the locator.
	CanServe(locator ContentLocator) bool

	// Available checks if the source is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this source.
	LocationURI() string
}

// SourceFactory creates content sources.
type SourceFactory interface {
	// SourceFor creates a source from a backend URI.
	// Supports file://, s3://, ipfs://, vault://, http(s)://
	SourceFor(location StorageBackendLocation) (ContentSource, error)

	// CreateMultiSource creates an ordered mirror list behind a single source.
	CreateMultiSource(locations []StorageBackendLocation) (ContentSource, error)
}

// ProofStore durably persists assembled proof artifacts keyed by document ID.
type ProofStore interface {
	// Put stores an artifact. The write is atomic; a reader never observes a
	// partially written artifact.
	Put(ctx context.Context, artifact *ProofArtifact) error

	// Get retrieves the artifact for a document ID, or ErrProofNotFound.
	Get(ctx context.Context, id DocumentID) (*ProofArtifact, error)
}
