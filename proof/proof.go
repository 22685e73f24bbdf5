// Package proof assembles, serializes, and checks the self-checksummed
// artifacts that record attestation runs.
//
// An artifact's checksum is the SHA-256 digest of its canonical JSON form
// with the checksum field zeroed. Anyone holding an artifact can recompute
// it without ledger access, so every other check can assume an untampered
// artifact once the checksum matches.
package proof

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/content-attestation-engine/canonical"
	"github.com/ruteri/content-attestation-engine/interfaces"
)

// Assembler seals attestation run facts into proof artifacts. It never
// mutates its inputs and produces byte-identical artifacts for identical
// inputs under a fixed clock.
type Assembler struct {
	now func() time.Time
	log *slog.Logger
}

// NewAssembler creates an assembler stamping artifacts with the wall clock.
func NewAssembler(log *slog.Logger) *Assembler {
	return &Assembler{now: time.Now, log: log}
}

// WithClock overrides the assembler's clock.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// Assemble seals the outcome of one attestation run. The caller decides when
// sealing is allowed; a failed aggregate is sealed the same way a confirmed
// one is, and an operator cutoff may seal a still-pending aggregate. The
// confirmations map is copied, so later caller mutations cannot reach the
// artifact.
func (a *Assembler) Assemble(
	documentID interfaces.DocumentID,
	locator interfaces.ContentLocator,
	metadataDigest interfaces.Digest,
	report *interfaces.OracleReport,
	confirmations map[string]interfaces.ChainConfirmation,
	aggregate interfaces.AggregateStatus,
	quorum interfaces.QuorumSpec,
) (*interfaces.ProofArtifact, error) {
	if documentID.IsZero() {
		return nil, &interfaces.ValidationError{Field: "document_id", Reason: "zero document ID"}
	}
	if err := locator.Validate(); err != nil {
		return nil, &interfaces.ValidationError{Field: "locator", Reason: err.Error()}
	}
	if metadataDigest.IsZero() {
		return nil, &interfaces.ValidationError{Field: "metadata_digest", Reason: "zero metadata digest"}
	}
	if report == nil {
		return nil, &interfaces.ValidationError{Field: "oracle_report", Reason: "missing oracle report"}
	}
	if report.RequestID == "" {
		return nil, &interfaces.ValidationError{Field: "oracle_report", Reason: "report carries no request ID"}
	}
	if len(report.Signature) == 0 {
		return nil, &interfaces.ValidationError{Field: "oracle_report", Reason: "report carries no signature"}
	}
	if !report.ReportedDigest.Equal(documentID) {
		return nil, &interfaces.ValidationError{Field: "oracle_report", Reason: "reported digest does not match document ID"}
	}
	if len(confirmations) == 0 {
		return nil, &interfaces.ValidationError{Field: "chain_confirmations", Reason: "no chain confirmations"}
	}
	for chainID, record := range confirmations {
		if chainID != record.ChainID {
			return nil, &interfaces.ValidationError{Field: "chain_confirmations", Reason: fmt.Sprintf("record for chain %s keyed as %s", record.ChainID, chainID)}
		}
	}
	if quorum.Required < 1 || quorum.Required > quorum.Total {
		return nil, &interfaces.ValidationError{Field: "quorum", Reason: fmt.Sprintf("quorum %d of %d is unsatisfiable", quorum.Required, quorum.Total)}
	}
	if quorum.Total != len(confirmations) {
		return nil, &interfaces.ValidationError{Field: "quorum", Reason: fmt.Sprintf("quorum total %d does not cover %d tracked chains", quorum.Total, len(confirmations))}
	}

	copied := make(map[string]interfaces.ChainConfirmation, len(confirmations))
	for chainID, record := range confirmations {
		copied[chainID] = record
	}

	artifact := &interfaces.ProofArtifact{
		DocumentID:         documentID,
		Locator:            locator,
		MetadataDigest:     metadataDigest,
		DigestAlgorithm:    interfaces.DigestAlgorithm,
		OracleReport:       *report,
		ChainConfirmations: copied,
		AggregateStatus:    aggregate,
		Quorum:             quorum,
		CreatedAt:          a.now().UTC().Truncate(time.Second),
	}

	checksum, err := ComputeChecksum(artifact)
	if err != nil {
		return nil, err
	}
	artifact.ArtifactChecksum = checksum

	a.log.Info("proof artifact assembled",
		slog.String("document_id", documentID.String()),
		slog.String("aggregate_status", string(aggregate)),
		slog.String("checksum", checksum.String()))

	return artifact, nil
}

// ComputeChecksum computes the digest of the artifact's canonical form with
// the checksum field zeroed. It does not modify the artifact.
func ComputeChecksum(artifact *interfaces.ProofArtifact) (interfaces.Digest, error) {
	clone := *artifact
	clone.ArtifactChecksum = interfaces.Digest{}

	canonicalized, err := canonical.Marshal(&clone)
	if err != nil {
		return interfaces.Digest{}, fmt.Errorf("canonicalizing artifact: %w", err)
	}
	return interfaces.ComputeDigest(canonicalized), nil
}

// ValidateChecksum recomputes the artifact's checksum and returns an
// IntegrityFault on mismatch.
func ValidateChecksum(artifact *interfaces.ProofArtifact) error {
	computed, err := ComputeChecksum(artifact)
	if err != nil {
		return err
	}
	if !computed.Equal(artifact.ArtifactChecksum) {
		return &interfaces.IntegrityFault{
			Op:       "artifact checksum",
			Expected: artifact.ArtifactChecksum.String(),
			Actual:   computed.String(),
		}
	}
	return nil
}

// Encode renders an artifact as indented JSON for storage and transport. The
// checksum covers the canonical form, so the indentation does not affect
// verifiability.
func Encode(artifact *interfaces.ProofArtifact) ([]byte, error) {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding proof artifact: %w", err)
	}
	return data, nil
}

// Decode parses a stored artifact. Integrity is not checked here; run
// ValidateChecksum or the verifier on the result.
func Decode(data []byte) (*interfaces.ProofArtifact, error) {
	var artifact interfaces.ProofArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decoding proof artifact: %w", err)
	}
	return &artifact, nil
}
