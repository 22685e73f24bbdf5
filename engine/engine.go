// Package engine orchestrates the attestation pipeline: content retrieval,
// identity derivation, oracle attestation, cross-chain confirmation tracking
// and proof assembly. The engine owns the ordering of stages within one
// attestation; the collaborators it drives own their own concurrency.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/content-attestation-engine/canonical"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/ledger"
	"github.com/ruteri/content-attestation-engine/metrics"
	"github.com/ruteri/content-attestation-engine/oracle"
	"github.com/ruteri/content-attestation-engine/proof"
	"github.com/ruteri/content-attestation-engine/verifier"
)

// DefaultTrackingCeiling bounds the confirmation-tracking phase of one
// attestation. When it elapses before the aggregate settles, the run is
// sealed with whatever per-chain state was recorded and reported as timed
// out.
const DefaultTrackingCeiling = 10 * time.Minute

// ErrOracleRejected marks attestation failures where the oracle refused the
// request or its report failed validation. The underlying cause stays in the
// chain. A rejected request is never retried with the same document ID.
var ErrOracleRejected = errors.New("oracle rejected the attestation request")

// Config wires an engine's collaborators.
type Config struct {
	// Source retrieves document bytes for attestation and verification.
	Source interfaces.ContentSource

	// Oracle drives attestation requests to a terminal state.
	Oracle *oracle.Client

	// Tracker follows anchoring transactions across chains.
	Tracker *ledger.Tracker

	// Proofs durably stores assembled artifacts.
	Proofs interfaces.ProofStore

	// Verifier is needed only for Verify; an attest-only engine may leave
	// it unset.
	Verifier *verifier.Verifier

	// TrackingCeiling caps the confirmation-tracking phase. Zero selects
	// DefaultTrackingCeiling.
	TrackingCeiling time.Duration

	Log *slog.Logger
}

// Engine runs attestations end to end and re-verifies stored artifacts.
type Engine struct {
	source    interfaces.ContentSource
	oracle    *oracle.Client
	tracker   *ledger.Tracker
	proofs    interfaces.ProofStore
	verifier  *verifier.Verifier
	assembler *proof.Assembler
	ceiling   time.Duration
	log       *slog.Logger
}

// New creates an engine from cfg. Source, Oracle, Tracker and Proofs are
// required.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("engine needs a content source")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("engine needs an oracle client")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("engine needs a confirmation tracker")
	}
	if cfg.Proofs == nil {
		return nil, errors.New("engine needs a proof store")
	}
	if cfg.TrackingCeiling <= 0 {
		cfg.TrackingCeiling = DefaultTrackingCeiling
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Engine{
		source:    cfg.Source,
		oracle:    cfg.Oracle,
		tracker:   cfg.Tracker,
		proofs:    cfg.Proofs,
		verifier:  cfg.Verifier,
		assembler: proof.NewAssembler(cfg.Log),
		ceiling:   cfg.TrackingCeiling,
		log:       cfg.Log,
	}, nil
}

// Attest runs the full pipeline for one document: fetch the bytes the
// locator points at, derive the document identity, obtain a signed oracle
// report, track the anchoring transactions to a terminal aggregate and seal
// the result into a stored proof artifact.
//
// An oracle rejection or timeout aborts the run with no artifact. Once
// tracking starts, the run always seals: quorum failure yields the negative
// artifact together with a QuorumUnreachableError, and the tracking ceiling
// elapsing yields a still-pending artifact together with a TimeoutError.
func (e *Engine) Attest(ctx context.Context, locator interfaces.ContentLocator, metadata any) (*interfaces.ProofArtifact, error) {
	start := time.Now()
	metrics.IncAttestationStarted()

	documentID, metadataDigest, err := e.deriveIdentity(ctx, locator, metadata)
	if err != nil {
		metrics.IncAttestationFinished("validation_failed")
		return nil, err
	}

	log := e.log.With(slog.String("document_id", documentID.String()))
	log.Info("Starting attestation", slog.String("locator", locator.URI))

	result, err := e.oracle.Attest(ctx, documentID, locator)
	if err != nil {
		outcome := "oracle_rejected"
		var timeout *interfaces.TimeoutError
		if errors.As(err, &timeout) {
			outcome = "oracle_timeout"
		}
		metrics.IncAttestationFinished(outcome)
		log.Error("Oracle attestation failed",
			slog.String("state", result.Request.State.String()),
			"err", err)
		if result.Request.State == interfaces.StateRejected {
			return nil, fmt.Errorf("%w: %w", ErrOracleRejected, err)
		}
		return nil, err
	}
	if result.Stale {
		log.Warn("Oracle report is stale but accepted",
			slog.String("request_id", result.Report.RequestID),
			slog.Time("issued_at", result.Report.IssuedAt))
	}

	tracking, err := e.tracker.Track(ctx, result.Anchors)
	if err != nil {
		metrics.IncAttestationFinished("validation_failed")
		return nil, err
	}

	trackCtx, cancel := context.WithTimeout(ctx, e.ceiling)
	defer cancel()

	_, waitErr := tracking.Wait(trackCtx)
	tracking.Stop()

	if waitErr != nil && ctx.Err() != nil {
		metrics.IncAttestationFinished("canceled")
		return nil, fmt.Errorf("attestation of %s abandoned: %w", documentID, ctx.Err())
	}

	// Stop has joined the pollers; this is the settled view of the run.
	aggregate := tracking.Aggregate()

	artifact, err := e.assembler.Assemble(
		documentID,
		locator,
		metadataDigest,
		result.Report,
		tracking.Confirmations(),
		aggregate,
		tracking.Quorum(),
	)
	if err != nil {
		metrics.IncAttestationFinished("assembly_failed")
		return nil, err
	}

	if err := e.proofs.Put(ctx, artifact); err != nil {
		metrics.IncAttestationFinished("storage_failed")
		return nil, fmt.Errorf("storing proof artifact: %w", err)
	}

	log.Info("Attestation sealed",
		slog.String("aggregate_status", aggregate.String()),
		slog.String("artifact_checksum", artifact.ArtifactChecksum.String()),
		slog.Duration("duration", time.Since(start)))

	switch aggregate {
	case interfaces.AggregateConfirmed:
		metrics.IncAttestationFinished("confirmed")
		return artifact, nil
	case interfaces.AggregateFailed:
		metrics.IncAttestationFinished("quorum_unreachable")
		return artifact, tracking.QuorumError()
	default:
		metrics.IncAttestationFinished("tracking_timeout")
		return artifact, &interfaces.TimeoutError{
			Op:      "confirmation tracking for document " + documentID.String(),
			Ceiling: e.ceiling,
		}
	}
}

// deriveIdentity fetches and validates the document bytes, then computes the
// composite document identity.
func (e *Engine) deriveIdentity(ctx context.Context, locator interfaces.ContentLocator, metadata any) (interfaces.DocumentID, interfaces.Digest, error) {
	var zero interfaces.Digest

	if err := locator.Validate(); err != nil {
		return zero, zero, &interfaces.ValidationError{Field: "locator", Reason: err.Error()}
	}

	content, err := e.source.Fetch(ctx, locator)
	if err != nil {
		return zero, zero, fmt.Errorf("fetching %s: %w", locator.URI, err)
	}

	contentDigest := interfaces.ComputeDigest(content)
	if !contentDigest.Equal(locator.ContentDigest) {
		return zero, zero, &interfaces.ValidationError{
			Field:  "content_digest",
			Reason: fmt.Sprintf("fetched content hashes to %s, locator pins %s", contentDigest, locator.ContentDigest),
		}
	}

	metadataDigest, err := canonical.MetadataDigest(metadata)
	if err != nil {
		return zero, zero, err
	}

	return interfaces.DeriveDocumentID(contentDigest, metadataDigest), metadataDigest, nil
}

// Verify re-checks an artifact. When content is nil the document bytes are
// fetched through the engine's content source using the artifact's locator;
// metadata may be nil if the caller does not hold the original metadata.
// The report is the result: a FAILED verdict is not an error.
func (e *Engine) Verify(ctx context.Context, artifact *interfaces.ProofArtifact, content []byte, metadata any) (*interfaces.VerificationReport, error) {
	if e.verifier == nil {
		return nil, errors.New("engine has no verifier configured")
	}
	if artifact == nil {
		return nil, &interfaces.ValidationError{Field: "artifact", Reason: "no artifact to verify"}
	}

	if content == nil {
		fetched, err := e.source.Fetch(ctx, artifact.Locator)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", artifact.Locator.URI, err)
		}
		content = fetched
	}

	return e.verifier.Verify(ctx, artifact, content, metadata)
}

// Proof returns the stored artifact for a document ID.
func (e *Engine) Proof(ctx context.Context, id interfaces.DocumentID) (*interfaces.ProofArtifact, error) {
	return e.proofs.Get(ctx, id)
}
