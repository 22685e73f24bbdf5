package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// VaultSource serves vault://<mount>/<path> locators from HashiCorp Vault
// KV v2 mounts. The secret's "content" field holds the document bytes,
// base64-encoded when the "encoding" field says so.
type VaultSource struct {
	client      *api.Client
	address     string
	log         *slog.Logger
	locationURI string
}

// NewVaultSource creates a Vault source authenticating with a token.
func NewVaultSource(address, token string, log *slog.Logger) (*VaultSource, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSource{
		client:      client,
		address:     address,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s", address),
	}, nil
}

// Fetch retrieves the document a vault:// locator points at.
func (s *VaultSource) Fetch(ctx context.Context, locator interfaces.ContentLocator) ([]byte, error) {
	if !s.CanServe(locator) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCannotServe, locator.URI)
	}

	start := time.Now()
	path, err := vaultPath(locator)
	if err != nil {
		return nil, err
	}

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		s.log.Debug("Content not found in Vault", slog.String("path", path))
		return nil, interfaces.ErrContentNotFound
	}

	// KV v2 wraps the secret under a nested "data" key.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	raw := []byte(content)
	if encoding, _ := data["encoding"].(string); encoding == "base64" {
		raw, err = base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
	}

	s.log.Debug("Fetched content from Vault",
		slog.String("path", path),
		slog.Int("size", len(raw)),
		slog.Duration("duration", time.Since(start)))

	return raw, nil
}

// CanServe reports whether the locator names a Vault secret.
func (s *VaultSource) CanServe(locator interfaces.ContentLocator) bool {
	return locator.Scheme() == "vault"
}

// Available checks the Vault server's health endpoint.
func (s *VaultSource) Available(ctx context.Context) bool {
	_, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		s.log.Debug("Vault source unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this source.
func (s *VaultSource) Name() string {
	return fmt.Sprintf("vault-%s", s.address)
}

// LocationURI returns the URI that identifies this source.
func (s *VaultSource) LocationURI() string {
	return s.locationURI
}

// vaultPath converts a vault://<mount>/<path> locator to a KV v2 read path.
func vaultPath(locator interfaces.ContentLocator) (string, error) {
	rest := strings.TrimPrefix(locator.URI, "vault://")
	mount, secretPath, found := strings.Cut(rest, "/")
	if !found || mount == "" || secretPath == "" {
		return "", fmt.Errorf("%w: expected vault://mount/path, got %s", interfaces.ErrInvalidLocator, locator.URI)
	}
	return fmt.Sprintf("%s/data/%s", mount, strings.TrimSuffix(secretPath, "/")), nil
}
