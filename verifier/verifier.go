// Package verifier independently re-checks proof artifacts. It re-derives
// every digest from the raw content, re-validates the oracle signature, and
// re-queries every ledger live; the artifact's own fields are never taken as
// ground truth for anything that can be recomputed.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/ruteri/content-attestation-engine/canonical"
	"github.com/ruteri/content-attestation-engine/cryptoutils"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/ledger"
	"github.com/ruteri/content-attestation-engine/metrics"
	"github.com/ruteri/content-attestation-engine/proof"
)

// Options configures the re-verification policy. The artifact does not
// record confirmation depth or the signer set, so the verifier supplies its
// own.
type Options struct {
	// RequiredDepth is the confirmation depth a chain must show at
	// verification time. Defaults to the tracker's default depth.
	RequiredDepth uint64

	// ChainDepths overrides RequiredDepth per chain ID.
	ChainDepths map[string]uint64

	// AuthorizedSigners are the oracle addresses accepted by the signature
	// stage. With an empty set the stage only proves the signature is
	// well-formed and recoverable, and records the recovered address.
	AuthorizedSigners []common.Address
}

// Verifier re-checks proof artifacts against live ledgers.
type Verifier struct {
	dialer interfaces.LedgerDialer
	opts   Options
	log    *slog.Logger
}

// New creates a verifier that re-queries chains through the given dialer.
func New(dialer interfaces.LedgerDialer, opts Options, log *slog.Logger) *Verifier {
	return &Verifier{dialer: dialer, opts: opts, log: log}
}

// Verify evaluates every verification stage against the artifact and the raw
// content. All stages are evaluated even after one fails; the report names
// each stage's outcome and the verdict is VERIFIED only when no stage
// failed. Passing nil metadata skips the metadata digest stage, since the
// artifact alone cannot reproduce it.
//
// The returned error covers only the inability to run verification at all;
// a FAILED verdict comes back with a nil error.
func (v *Verifier) Verify(ctx context.Context, artifact *interfaces.ProofArtifact, content []byte, metadata any) (*interfaces.VerificationReport, error) {
	if artifact == nil {
		return nil, &interfaces.ValidationError{Field: "artifact", Reason: "no artifact to verify"}
	}

	report := &interfaces.VerificationReport{
		DocumentID: artifact.DocumentID,
		VerifiedAt: time.Now().UTC(),
	}

	report.Stages = append(report.Stages, v.checkArtifactChecksum(artifact))

	contentDigest := interfaces.ComputeDigest(content)
	report.Stages = append(report.Stages, diffStage(interfaces.StageContentDigest, artifact.Locator.ContentDigest.String(), contentDigest.String()))

	metadataDigest, metadataStage := v.checkMetadataDigest(artifact, metadata)
	report.Stages = append(report.Stages, metadataStage)

	derivedID := interfaces.DeriveDocumentID(contentDigest, metadataDigest)
	report.Stages = append(report.Stages, diffStage(interfaces.StageDocumentID, artifact.DocumentID.String(), derivedID.String()))

	report.Stages = append(report.Stages, v.checkOracleSignature(artifact))
	report.Stages = append(report.Stages, diffStage(interfaces.StageOracleDigest, derivedID.String(), artifact.OracleReport.ReportedDigest.String()))

	checks := v.recheckChains(ctx, artifact)
	report.Stages = append(report.Stages, v.checkLedgerConfirmations(artifact, checks))
	report.Stages = append(report.Stages, v.checkQuorum(artifact, checks))

	report.Verdict = interfaces.VerdictVerified
	for _, stage := range report.Stages {
		if stage.Status == interfaces.StageFail {
			report.Verdict = interfaces.VerdictFailed
			break
		}
	}

	metrics.IncVerification(string(report.Verdict))
	v.log.Info("verification finished",
		slog.String("document_id", artifact.DocumentID.String()),
		slog.String("verdict", string(report.Verdict)))

	return report, nil
}

// diffStage compares an expected value from the artifact with a re-derived
// one.
func diffStage(stage, expected, actual string) interfaces.StageResult {
	result := interfaces.StageResult{Stage: stage, Status: interfaces.StagePass}
	if expected != actual {
		result.Status = interfaces.StageFail
		result.Expected = expected
		result.Actual = actual
	}
	return result
}

func (v *Verifier) checkArtifactChecksum(artifact *interfaces.ProofArtifact) interfaces.StageResult {
	computed, err := proof.ComputeChecksum(artifact)
	if err != nil {
		return interfaces.StageResult{
			Stage:  interfaces.StageArtifactChecksum,
			Status: interfaces.StageFail,
			Detail: fmt.Sprintf("artifact cannot be canonicalized: %v", err),
		}
	}
	return diffStage(interfaces.StageArtifactChecksum, artifact.ArtifactChecksum.String(), computed.String())
}

// checkMetadataDigest recomputes the metadata digest when the original
// metadata is supplied. It returns the digest the document ID derivation
// should use: the recomputed one if available, otherwise the artifact's,
// which is not independently re-derivable without the metadata.
func (v *Verifier) checkMetadataDigest(artifact *interfaces.ProofArtifact, metadata any) (interfaces.Digest, interfaces.StageResult) {
	if metadata == nil {
		return artifact.MetadataDigest, interfaces.StageResult{
			Stage:  interfaces.StageMetadataDigest,
			Status: interfaces.StageSkipped,
			Detail: "original metadata not supplied",
		}
	}

	computed, err := canonical.MetadataDigest(metadata)
	if err != nil {
		return artifact.MetadataDigest, interfaces.StageResult{
			Stage:  interfaces.StageMetadataDigest,
			Status: interfaces.StageFail,
			Detail: fmt.Sprintf("metadata digest cannot be recomputed: %v", err),
		}
	}
	return computed, diffStage(interfaces.StageMetadataDigest, artifact.MetadataDigest.String(), computed.String())
}

func (v *Verifier) checkOracleSignature(artifact *interfaces.ProofArtifact) interfaces.StageResult {
	signer, err := cryptoutils.RecoverReportSigner(&artifact.OracleReport)
	if err != nil {
		return interfaces.StageResult{
			Stage:  interfaces.StageOracleSignature,
			Status: interfaces.StageFail,
			Detail: fmt.Sprintf("signature does not recover: %v", err),
		}
	}

	if len(v.opts.AuthorizedSigners) == 0 {
		return interfaces.StageResult{
			Stage:  interfaces.StageOracleSignature,
			Status: interfaces.StagePass,
			Detail: fmt.Sprintf("signature recovers to %s; no authorized signer set configured", signer.Hex()),
		}
	}

	for _, authorized := range v.opts.AuthorizedSigners {
		if signer == authorized {
			return interfaces.StageResult{
				Stage:  interfaces.StageOracleSignature,
				Status: interfaces.StagePass,
				Detail: fmt.Sprintf("signed by %s", signer.Hex()),
			}
		}
	}

	expected := make([]string, 0, len(v.opts.AuthorizedSigners))
	for _, authorized := range v.opts.AuthorizedSigners {
		expected = append(expected, authorized.Hex())
	}
	return interfaces.StageResult{
		Stage:    interfaces.StageOracleSignature,
		Status:   interfaces.StageFail,
		Detail:   "signer is not authorized",
		Expected: strings.Join(expected, ","),
		Actual:   signer.Hex(),
	}
}

// chainCheck is one chain's live re-query outcome.
type chainCheck struct {
	chainID           string
	recordedConfirmed bool
	confirmed         bool
	detail            string
}

// recheckChains re-queries every chain the artifact mentions, concurrently.
// Chains the artifact recorded as pending or failed are still re-queried;
// their live state feeds the quorum stage.
func (v *Verifier) recheckChains(ctx context.Context, artifact *interfaces.ProofArtifact) []chainCheck {
	chainIDs := make([]string, 0, len(artifact.ChainConfirmations))
	for chainID := range artifact.ChainConfirmations {
		chainIDs = append(chainIDs, chainID)
	}
	sort.Strings(chainIDs)

	checks := make([]chainCheck, len(chainIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, chainID := range chainIDs {
		record := artifact.ChainConfirmations[chainID]
		g.Go(func() error {
			checks[i] = v.recheckChain(gctx, record)
			return nil
		})
	}
	_ = g.Wait()

	return checks
}

func (v *Verifier) recheckChain(ctx context.Context, record interfaces.ChainConfirmation) chainCheck {
	check := chainCheck{
		chainID:           record.ChainID,
		recordedConfirmed: record.Status == interfaces.ConfirmationConfirmed,
	}

	client, err := v.dialer.Dial(ctx, record.ChainID)
	if err != nil {
		metrics.IncLedgerError(record.ChainID)
		check.detail = fmt.Sprintf("chain unreachable: %v", err)
		return check
	}

	metrics.IncLedgerPoll(record.ChainID)
	status, err := client.TransactionStatus(ctx, record.TransactionRef)
	if err != nil {
		metrics.IncLedgerError(record.ChainID)
		check.detail = fmt.Sprintf("status query failed: %v", err)
		return check
	}

	depth := v.depthFor(record.ChainID)
	switch {
	case !status.Found:
		check.detail = "transaction not found"
	case status.Reverted:
		check.detail = "transaction reverted"
	case status.ConfirmationCount < depth:
		check.detail = fmt.Sprintf("%d of %d required confirmations", status.ConfirmationCount, depth)
	default:
		check.confirmed = true
		check.detail = fmt.Sprintf("%d confirmations at height %d", status.ConfirmationCount, status.BlockHeight)
	}
	return check
}

// checkLedgerConfirmations holds the artifact to its claims: every chain it
// recorded as confirmed must still be confirmed at the required depth now.
func (v *Verifier) checkLedgerConfirmations(artifact *interfaces.ProofArtifact, checks []chainCheck) interfaces.StageResult {
	var claimed int
	var failures []string
	for _, check := range checks {
		if !check.recordedConfirmed {
			continue
		}
		claimed++
		if !check.confirmed {
			failures = append(failures, fmt.Sprintf("%s: %s", check.chainID, check.detail))
		}
	}

	if claimed == 0 {
		return interfaces.StageResult{
			Stage:  interfaces.StageLedgerConfirmations,
			Status: interfaces.StagePass,
			Detail: "artifact records no confirmed chains",
		}
	}
	if len(failures) > 0 {
		return interfaces.StageResult{
			Stage:  interfaces.StageLedgerConfirmations,
			Status: interfaces.StageFail,
			Detail: strings.Join(failures, "; "),
		}
	}
	return interfaces.StageResult{
		Stage:  interfaces.StageLedgerConfirmations,
		Status: interfaces.StagePass,
		Detail: fmt.Sprintf("%d chains re-confirmed", claimed),
	}
}

// checkQuorum counts live confirmations across every chain the artifact
// mentions, including ones recorded pending that have since confirmed.
func (v *Verifier) checkQuorum(artifact *interfaces.ProofArtifact, checks []chainCheck) interfaces.StageResult {
	quorum := artifact.Quorum
	if quorum.Required < 1 || quorum.Required > quorum.Total {
		return interfaces.StageResult{
			Stage:  interfaces.StageQuorum,
			Status: interfaces.StageFail,
			Detail: fmt.Sprintf("artifact quorum %d of %d is unsatisfiable", quorum.Required, quorum.Total),
		}
	}

	var live int
	for _, check := range checks {
		if check.confirmed {
			live++
		}
	}

	result := interfaces.StageResult{
		Stage:  interfaces.StageQuorum,
		Status: interfaces.StagePass,
		Detail: fmt.Sprintf("%d of %d chains confirmed live, quorum %d", live, len(checks), quorum.Required),
	}
	if live < quorum.Required {
		result.Status = interfaces.StageFail
		result.Expected = fmt.Sprintf("at least %d confirmed chains", quorum.Required)
		result.Actual = fmt.Sprintf("%d confirmed chains", live)
	}
	return result
}

func (v *Verifier) depthFor(chainID string) uint64 {
	if depth, ok := v.opts.ChainDepths[chainID]; ok && depth > 0 {
		return depth
	}
	if v.opts.RequiredDepth > 0 {
		return v.opts.RequiredDepth
	}
	return ledger.DefaultRequiredDepth
}
