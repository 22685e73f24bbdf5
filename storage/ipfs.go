package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// IPFSSource serves ipfs:// locators through an IPFS node's API. The
// locator's host part is the CID.
type IPFSSource struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSSource creates an IPFS source connected to the node at host:port.
func NewIPFSSource(host, port, timeout string, log *slog.Logger) (*IPFSSource, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid IPFS timeout %q: %w", timeout, err)
		}
		sh.SetTimeout(d)
	}

	return &IPFSSource{
		shell:       sh,
		host:        host,
		port:        port,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
	}, nil
}

// Fetch retrieves the bytes behind an ipfs:// locator. Returns
// ErrContentNotFound when the CID cannot be resolved and
// ErrBackendUnavailable when the node is not reachable.
func (s *IPFSSource) Fetch(ctx context.Context, locator interfaces.ContentLocator) ([]byte, error) {
	if !s.CanServe(locator) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCannotServe, locator.URI)
	}

	start := time.Now()
	path, err := ipfsPath(locator)
	if err != nil {
		return nil, err
	}

	if !s.shell.IsUp() {
		s.log.Warn("IPFS node unavailable",
			slog.String("host", s.host),
			slog.String("port", s.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := s.shell.Cat(path)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") || strings.Contains(err.Error(), "invalid path") {
			s.log.Debug("Content not found in IPFS",
				slog.String("path", path),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	s.log.Debug("Fetched content from IPFS",
		slog.String("path", path),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// CanServe reports whether the locator names IPFS content.
func (s *IPFSSource) CanServe(locator interfaces.ContentLocator) bool {
	return locator.Scheme() == "ipfs"
}

// Available checks if the IPFS node is accessible.
func (s *IPFSSource) Available(ctx context.Context) bool {
	return s.shell.IsUp()
}

// Name returns a unique identifier for this source.
func (s *IPFSSource) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", s.host, s.port)
}

// LocationURI returns the URI that identifies this source.
func (s *IPFSSource) LocationURI() string {
	return s.locationURI
}

// ipfsPath converts an ipfs://<cid>[/subpath] locator to an /ipfs/ API path.
func ipfsPath(locator interfaces.ContentLocator) (string, error) {
	u, err := url.Parse(locator.URI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrInvalidLocator, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no CID in %s", interfaces.ErrInvalidLocator, locator.URI)
	}
	return "/ipfs/" + u.Host + u.Path, nil
}
