package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// MultiSource fetches through an ordered list of sources, returning the
// first result whose bytes hash to the locator's pinned digest. A mirror
// serving corrupted bytes is skipped like an unreachable one.
type MultiSource struct {
	sources []interfaces.ContentSource
	log     *slog.Logger
}

// NewMultiSource composes sources into one, tried in the given order.
func NewMultiSource(sources []interfaces.ContentSource, logger *slog.Logger) *MultiSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSource{
		sources: sources,
		log:     logger,
	}
}

// Fetch tries each source that can serve the locator until one returns bytes
// matching the locator's digest.
func (m *MultiSource) Fetch(ctx context.Context, locator interfaces.ContentLocator) ([]byte, error) {
	start := time.Now()
	var errs *multierror.Error
	var tried int

	for _, source := range m.sources {
		if !source.CanServe(locator) {
			continue
		}
		tried++

		if !source.Available(ctx) {
			m.log.Debug("Source unavailable",
				slog.String("source", source.Name()),
				slog.String("locator", locator.URI))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", source.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		data, err := source.Fetch(ctx, locator)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", source.Name(), err))
			m.log.Debug("Failed to fetch from source",
				slog.String("source", source.Name()),
				slog.String("locator", locator.URI),
				"err", err)
			continue
		}

		if computed := interfaces.ComputeDigest(data); !computed.Equal(locator.ContentDigest) {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", source.Name(), interfaces.ErrDigestMismatch))
			m.log.Warn("Source served corrupted content",
				slog.String("source", source.Name()),
				slog.String("locator", locator.URI),
				slog.String("expected", locator.ContentDigest.String()),
				slog.String("actual", computed.String()))
			continue
		}

		m.log.Info("Successfully fetched content",
			slog.String("source", source.Name()),
			slog.String("locator", locator.URI),
			slog.Int("size", len(data)),
			slog.Duration("duration", time.Since(start)))
		return data, nil
	}

	if tried == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrCannotServe, locator.URI)
	}

	m.log.Error("All sources failed to fetch content",
		slog.String("locator", locator.URI),
		slog.Int("failed_sources", tried),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all sources failed to fetch %s: %w", locator.URI, errs.ErrorOrNil())
}

// CanServe reports whether any composed source handles the locator.
func (m *MultiSource) CanServe(locator interfaces.ContentLocator) bool {
	for _, source := range m.sources {
		if source.CanServe(locator) {
			return true
		}
	}
	return false
}

// Available reports whether any composed source is available.
func (m *MultiSource) Available(ctx context.Context) bool {
	for _, source := range m.sources {
		if source.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this source.
func (m *MultiSource) Name() string {
	return "multi-source"
}

// LocationURI returns the combined URI of all composed sources.
func (m *MultiSource) LocationURI() string {
	var locations []string
	for _, source := range m.sources {
		locations = append(locations, source.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
