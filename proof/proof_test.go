package proof

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return at }
}

type assembleInputs struct {
	documentID     interfaces.DocumentID
	locator        interfaces.ContentLocator
	metadataDigest interfaces.Digest
	report         *interfaces.OracleReport
	confirmations  map[string]interfaces.ChainConfirmation
	aggregate      interfaces.AggregateStatus
	quorum         interfaces.QuorumSpec
}

func testInputs(t *testing.T) assembleInputs {
	t.Helper()

	contentDigest := interfaces.ComputeDigest([]byte("hello world"))
	metadataDigest := interfaces.ComputeDigest([]byte(`{"type":"note"}`))
	documentID := interfaces.DeriveDocumentID(contentDigest, metadataDigest)

	locator, err := interfaces.NewContentLocator("file:///srv/docs/note.txt", contentDigest)
	require.NoError(t, err)

	signature := bytes.Repeat([]byte{0x5a}, 64)
	signature = append(signature, 0x01)

	report := &interfaces.OracleReport{
		RequestID:      "req-7c2f09d1",
		ReportedDigest: documentID,
		Signature:      signature,
		IssuedAt:       time.Date(2026, 3, 14, 9, 20, 0, 0, time.UTC),
		Finalized:      true,
	}

	confirmations := map[string]interfaces.ChainConfirmation{
		"eth-mainnet": {
			ChainID:           "eth-mainnet",
			TransactionRef:    "0x1111111111111111111111111111111111111111111111111111111111111111",
			BlockHeight:       19000000,
			ConfirmationCount: 14,
			Status:            interfaces.ConfirmationConfirmed,
		},
		"polygon": {
			ChainID:           "polygon",
			TransactionRef:    "0x2222222222222222222222222222222222222222222222222222222222222222",
			BlockHeight:       52000000,
			ConfirmationCount: 40,
			Status:            interfaces.ConfirmationConfirmed,
		},
		"arbitrum": {
			ChainID:           "arbitrum",
			TransactionRef:    "0x3333333333333333333333333333333333333333333333333333333333333333",
			BlockHeight:       180000000,
			ConfirmationCount: 2,
			Status:            interfaces.ConfirmationPending,
		},
	}

	return assembleInputs{
		documentID:     documentID,
		locator:        locator,
		metadataDigest: metadataDigest,
		report:         report,
		confirmations:  confirmations,
		aggregate:      interfaces.AggregateConfirmed,
		quorum:         interfaces.QuorumSpec{Required: 2, Total: 3},
	}
}

func assemble(t *testing.T, a *Assembler, in assembleInputs) *interfaces.ProofArtifact {
	t.Helper()
	artifact, err := a.Assemble(in.documentID, in.locator, in.metadataDigest, in.report, in.confirmations, in.aggregate, in.quorum)
	require.NoError(t, err)
	return artifact
}

func TestAssemble(t *testing.T) {
	in := testInputs(t)
	artifact := assemble(t, NewAssembler(testLogger()).WithClock(fixedClock()), in)

	require.Equal(t, in.documentID, artifact.DocumentID)
	require.Equal(t, in.locator, artifact.Locator)
	require.Equal(t, in.metadataDigest, artifact.MetadataDigest)
	require.Equal(t, "sha256", artifact.DigestAlgorithm)
	require.Equal(t, *in.report, artifact.OracleReport)
	require.Equal(t, in.confirmations, artifact.ChainConfirmations)
	require.Equal(t, interfaces.AggregateConfirmed, artifact.AggregateStatus)
	require.Equal(t, in.quorum, artifact.Quorum)
	require.Equal(t, fixedClock()(), artifact.CreatedAt)
	require.False(t, artifact.ArtifactChecksum.IsZero())

	require.NoError(t, ValidateChecksum(artifact))
}

func TestAssembleByteIdentical(t *testing.T) {
	in := testInputs(t)
	assembler := NewAssembler(testLogger()).WithClock(fixedClock())

	first := assemble(t, assembler, in)
	second := assemble(t, assembler, in)

	firstJSON, err := Encode(first)
	require.NoError(t, err)
	secondJSON, err := Encode(second)
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON)
	require.Equal(t, first.ArtifactChecksum, second.ArtifactChecksum)
}

func TestAssembleNegativeArtifact(t *testing.T) {
	in := testInputs(t)
	in.aggregate = interfaces.AggregateFailed
	failed := in.confirmations["eth-mainnet"]
	failed.Status = interfaces.ConfirmationFailed
	failed.FailureReason = "transaction reverted"
	in.confirmations["eth-mainnet"] = failed

	artifact := assemble(t, NewAssembler(testLogger()).WithClock(fixedClock()), in)

	require.Equal(t, interfaces.AggregateFailed, artifact.AggregateStatus)
	require.Equal(t, "transaction reverted", artifact.ChainConfirmations["eth-mainnet"].FailureReason)
	require.NoError(t, ValidateChecksum(artifact))
}

func TestAssembleCopiesConfirmations(t *testing.T) {
	in := testInputs(t)
	artifact := assemble(t, NewAssembler(testLogger()).WithClock(fixedClock()), in)

	tampered := in.confirmations["eth-mainnet"]
	tampered.Status = interfaces.ConfirmationFailed
	in.confirmations["eth-mainnet"] = tampered
	delete(in.confirmations, "polygon")

	require.Equal(t, interfaces.ConfirmationConfirmed, artifact.ChainConfirmations["eth-mainnet"].Status)
	require.Contains(t, artifact.ChainConfirmations, "polygon")
	require.NoError(t, ValidateChecksum(artifact))
}

func TestAssembleValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*assembleInputs)
		field  string
	}{
		{
			name:   "zero document id",
			mutate: func(in *assembleInputs) { in.documentID = interfaces.DocumentID{} },
			field:  "document_id",
		},
		{
			name:   "invalid locator",
			mutate: func(in *assembleInputs) { in.locator.URI = "ftp://mirror/doc.txt" },
			field:  "locator",
		},
		{
			name:   "zero metadata digest",
			mutate: func(in *assembleInputs) { in.metadataDigest = interfaces.Digest{} },
			field:  "metadata_digest",
		},
		{
			name:   "missing report",
			mutate: func(in *assembleInputs) { in.report = nil },
			field:  "oracle_report",
		},
		{
			name:   "report without request id",
			mutate: func(in *assembleInputs) { in.report.RequestID = "" },
			field:  "oracle_report",
		},
		{
			name:   "report without signature",
			mutate: func(in *assembleInputs) { in.report.Signature = nil },
			field:  "oracle_report",
		},
		{
			name: "report digest mismatch",
			mutate: func(in *assembleInputs) {
				in.report.ReportedDigest = interfaces.ComputeDigest([]byte("some other document"))
			},
			field: "oracle_report",
		},
		{
			name:   "no confirmations",
			mutate: func(in *assembleInputs) { in.confirmations = nil },
			field:  "chain_confirmations",
		},
		{
			name: "confirmation keyed under wrong chain",
			mutate: func(in *assembleInputs) {
				record := in.confirmations["polygon"]
				delete(in.confirmations, "polygon")
				in.confirmations["optimism"] = record
			},
			field: "chain_confirmations",
		},
		{
			name:   "unsatisfiable quorum",
			mutate: func(in *assembleInputs) { in.quorum = interfaces.QuorumSpec{Required: 4, Total: 3} },
			field:  "quorum",
		},
		{
			name:   "quorum total mismatch",
			mutate: func(in *assembleInputs) { in.quorum = interfaces.QuorumSpec{Required: 2, Total: 5} },
			field:  "quorum",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := testInputs(t)
			tc.mutate(&in)

			_, err := NewAssembler(testLogger()).Assemble(in.documentID, in.locator, in.metadataDigest, in.report, in.confirmations, in.aggregate, in.quorum)
			require.Error(t, err)

			var verr *interfaces.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestChecksumTamperDetection(t *testing.T) {
	assembler := NewAssembler(testLogger()).WithClock(fixedClock())

	tests := []struct {
		name   string
		mutate func(*interfaces.ProofArtifact)
	}{
		{
			name:   "document id flipped",
			mutate: func(a *interfaces.ProofArtifact) { a.DocumentID = interfaces.ComputeDigest([]byte("other")) },
		},
		{
			name:   "locator rewritten",
			mutate: func(a *interfaces.ProofArtifact) { a.Locator.URI = "file:///srv/docs/forged.txt" },
		},
		{
			name:   "aggregate rewritten",
			mutate: func(a *interfaces.ProofArtifact) { a.AggregateStatus = interfaces.AggregateFailed },
		},
		{
			name: "confirmation depth inflated",
			mutate: func(a *interfaces.ProofArtifact) {
				record := a.ChainConfirmations["arbitrum"]
				record.ConfirmationCount = 500
				record.Status = interfaces.ConfirmationConfirmed
				a.ChainConfirmations["arbitrum"] = record
			},
		},
		{
			name:   "quorum relaxed",
			mutate: func(a *interfaces.ProofArtifact) { a.Quorum.Required = 1 },
		},
		{
			name:   "created at shifted",
			mutate: func(a *interfaces.ProofArtifact) { a.CreatedAt = a.CreatedAt.Add(time.Second) },
		},
		{
			name: "signature swapped",
			mutate: func(a *interfaces.ProofArtifact) {
				a.OracleReport.Signature = append(interfaces.Signature{}, a.OracleReport.Signature...)
				a.OracleReport.Signature[3] ^= 0xff
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			artifact := assemble(t, assembler, testInputs(t))
			require.NoError(t, ValidateChecksum(artifact))

			tc.mutate(artifact)

			err := ValidateChecksum(artifact)
			require.Error(t, err)

			var fault *interfaces.IntegrityFault
			require.ErrorAs(t, err, &fault)
			require.NotEqual(t, fault.Expected, fault.Actual)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := testInputs(t)
	artifact := assemble(t, NewAssembler(testLogger()).WithClock(fixedClock()), in)

	data, err := Encode(artifact)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, artifact, decoded)
	require.NoError(t, ValidateChecksum(decoded))

	_, err = Decode([]byte("{not json"))
	require.Error(t, err)
}

func TestComputeChecksumLeavesArtifactIntact(t *testing.T) {
	in := testInputs(t)
	artifact := assemble(t, NewAssembler(testLogger()).WithClock(fixedClock()), in)
	before := artifact.ArtifactChecksum

	computed, err := ComputeChecksum(artifact)
	require.NoError(t, err)
	require.Equal(t, before, artifact.ArtifactChecksum)
	require.Equal(t, before, computed)
}
