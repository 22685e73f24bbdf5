package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// Factory creates content sources from backend URIs and composes them into
// ordered mirror lists.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a source factory.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// SourceFor creates a content source from a backend URI.
//
// Supported schemes:
//   - file:// - Local file system, optionally confined to a root directory
//   - ipfs:// - IPFS node API
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2
//   - http(s):// - Plain web mirrors
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) SourceFor(location interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	switch {
	case location.IsFile():
		return f.createFileSource(location)
	case location.IsIPFS():
		return f.createIPFSSource(location)
	case location.IsS3():
		return f.createS3Source(location)
	case location.IsVault():
		return f.createVaultSource(location)
	case location.IsHTTP():
		return f.createHTTPSource(location)
	default:
		return nil, fmt.Errorf("unsupported source scheme: %s", location.Scheme)
	}
}

// CreateMultiSource creates an ordered mirror list from backend URIs.
// Sources that fail to construct are skipped with a warning; at least one
// must succeed.
func (f *Factory) CreateMultiSource(locations []interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	sources := make([]interfaces.ContentSource, 0, len(locations))

	for _, location := range locations {
		source, err := f.SourceFor(location)
		if err != nil {
			f.log.Warn("Failed to create content source",
				"err", err,
				slog.String("location", location.String()))
			continue
		}
		sources = append(sources, source)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no valid content sources created")
	}

	return NewMultiSource(sources, f.log), nil
}

// createFileSource creates a file system source.
// URI format: file:///var/lib/attestation/content (root directory, may be
// empty to serve any local path).
func (f *Factory) createFileSource(location interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	f.log.Debug("Creating file source", slog.String("uri", location.String()))

	root := location.Path
	if location.Host != "" {
		root = location.Host + "/" + strings.TrimPrefix(root, "/")
	}

	return NewFileSource(root, f.log)
}

// createIPFSSource creates an IPFS source.
// URI format: ipfs://host:port/?timeout=30s
func (f *Factory) createIPFSSource(location interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	f.log.Debug("Creating IPFS source", slog.String("uri", location.String()))

	host, port, found := strings.Cut(location.Host, ":")
	if !found || port == "" {
		port = "5001"
	}

	timeout := location.GetParam("timeout")
	if timeout == "" {
		timeout = "30s"
	}

	return NewIPFSSource(host, port, timeout, f.log)
}

// createS3Source creates an S3 source.
// URI format: s3://[endpoint]?region=us-west-2&access_key=AK&secret_key=SK
// Credentials may also be embedded as s3://ACCESS:SECRET@endpoint.
func (f *Factory) createS3Source(location interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	f.log.Debug("Creating S3 source", slog.String("uri", location.String()))

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	endpoint := location.Host
	if endpoint == "" {
		endpoint = location.GetParam("endpoint")
	}

	accessKey := location.GetParam("access_key")
	secretKey := location.GetParam("secret_key")
	if accessKey == "" && location.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(location.Auth, ":")
	}

	return NewS3Source(region, endpoint, accessKey, secretKey, f.log)
}

// createVaultSource creates a Vault source.
// URI format: vault://vault.internal:8200?token=hvs.XXXX&scheme=https
func (f *Factory) createVaultSource(location interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	f.log.Debug("Creating Vault source", slog.String("uri", location.String()))

	if location.Host == "" {
		return nil, fmt.Errorf("vault source needs an address: %s", location.String())
	}

	scheme := location.GetParam("scheme")
	if scheme == "" {
		scheme = "https"
	}
	address := fmt.Sprintf("%s://%s", scheme, location.Host)

	return NewVaultSource(address, location.GetParam("token"), f.log)
}

// createHTTPSource creates a web mirror source.
// URI format: https:// or http://?timeout=1m
func (f *Factory) createHTTPSource(location interfaces.StorageBackendLocation) (interfaces.ContentSource, error) {
	f.log.Debug("Creating HTTP source", slog.String("uri", location.String()))

	var timeout time.Duration
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTP timeout %q: %w", raw, err)
		}
		timeout = parsed
	}

	return NewHTTPSource(timeout, f.log), nil
}
