package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// DefaultHTTPTimeout bounds one mirror download.
const DefaultHTTPTimeout = 30 * time.Second

// maxHTTPContentSize caps a single download to keep a misbehaving mirror
// from exhausting memory.
const maxHTTPContentSize = 512 << 20

// HTTPSource serves http:// and https:// locators by plain GET. Documents on
// web mirrors are fetched as-is; the locator digest is what makes the result
// trustworthy.
type HTTPSource struct {
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// NewHTTPSource creates a web mirror source. A zero timeout selects the
// default.
func NewHTTPSource(timeout time.Duration, log *slog.Logger) *HTTPSource {
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPSource{
		client:      &http.Client{Timeout: timeout},
		log:         log,
		locationURI: "https://",
	}
}

// Fetch downloads the locator's URL. Returns ErrContentNotFound on 404.
func (s *HTTPSource) Fetch(ctx context.Context, locator interfaces.ContentLocator) ([]byte, error) {
	if !s.CanServe(locator) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCannotServe, locator.URI)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator.URI, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocator, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		s.log.Debug("Content not found on mirror", slog.String("url", locator.URI))
		return nil, interfaces.ErrContentNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("mirror returned status %d for %s", resp.StatusCode, locator.URI)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPContentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror response: %w", err)
	}

	s.log.Debug("Fetched content from mirror",
		slog.String("url", locator.URI),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// CanServe reports whether the locator is a web URL.
func (s *HTTPSource) CanServe(locator interfaces.ContentLocator) bool {
	scheme := locator.Scheme()
	return scheme == "http" || scheme == "https"
}

// Available reports whether the source can issue requests.
func (s *HTTPSource) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this source.
func (s *HTTPSource) Name() string {
	return "http"
}

// LocationURI returns the URI that identifies this source.
func (s *HTTPSource) LocationURI() string {
	return s.locationURI
}
