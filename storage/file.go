package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// FileSource serves file:// locators from the local file system. When
// created with a root directory, only locators under that root are served.
type FileSource struct {
	root        string
	log         *slog.Logger
	locationURI string
}

// NewFileSource creates a file source. An empty root serves any local path;
// a non-empty root is created if missing and confines reads to it.
func NewFileSource(root string, log *slog.Logger) (*FileSource, error) {
	uri := "file://"
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, fmt.Errorf("failed to create root directory: %w", err)
		}
		root = abs
		uri = fmt.Sprintf("file://%s", root)
	}

	return &FileSource{
		root:        root,
		log:         log,
		locationURI: uri,
	}, nil
}

// Fetch reads the file a locator points at. Returns ErrContentNotFound if
// the file doesn't exist.
func (s *FileSource) Fetch(ctx context.Context, locator interfaces.ContentLocator) ([]byte, error) {
	if !s.CanServe(locator) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCannotServe, locator.URI)
	}

	path, err := localPath(locator)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, interfaces.ErrContentNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.log.Debug("Fetched content from file",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return data, nil
}

// CanServe reports whether the locator is a file path this source may read.
func (s *FileSource) CanServe(locator interfaces.ContentLocator) bool {
	if locator.Scheme() != "file" {
		return false
	}
	if s.root == "" {
		return true
	}

	path, err := localPath(locator)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Available checks that the configured root still exists.
func (s *FileSource) Available(ctx context.Context) bool {
	if s.root == "" {
		return true
	}
	if _, err := os.Stat(s.root); err != nil {
		s.log.Debug("File source unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this source.
func (s *FileSource) Name() string {
	if s.root == "" {
		return "file"
	}
	return fmt.Sprintf("file-%s", filepath.Base(s.root))
}

// LocationURI returns the URI that identifies this source.
func (s *FileSource) LocationURI() string {
	return s.locationURI
}

// localPath extracts the cleaned file system path from a file:// locator.
func localPath(locator interfaces.ContentLocator) (string, error) {
	u, err := url.Parse(locator.URI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrInvalidLocator, err)
	}

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path in %s", interfaces.ErrInvalidLocator, locator.URI)
	}
	return filepath.Clean(path), nil
}
