package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/content-attestation-engine/canonical"
	"github.com/ruteri/content-attestation-engine/cryptoutils"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/ledger"
	"github.com/ruteri/content-attestation-engine/oracle"
	"github.com/ruteri/content-attestation-engine/storage"
	"github.com/ruteri/content-attestation-engine/verifier"
)

const (
	txEth     = "0x" + "11" + "11111111111111111111111111111111111111111111111111111111111111"
	txPolygon = "0x" + "22" + "22222222222222222222222222222222222222222222222222222222222222"
)

var testMetadata = map[string]any{
	"type":   "note",
	"author": "attestation-team",
	"tags":   []any{"archive", "public"},
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires a full engine against a stub oracle, mocked ledgers and
// file-based storage.
type harness struct {
	engine  *Engine
	stub    *oracle.Stub
	dialer  *ledger.MockLedgerDialer
	locator interfaces.ContentLocator
	content []byte
}

func confirmedLedger(chainID string, height, count uint64) *ledger.MockLedger {
	led := new(ledger.MockLedger)
	led.On("ChainID").Return(chainID).Maybe()
	led.On("TransactionStatus", mock.Anything, mock.Anything).Return(interfaces.TransactionStatus{
		Found:             true,
		BlockHeight:       height,
		ConfirmationCount: count,
	}, nil)
	led.On("Close").Return().Maybe()
	return led
}

func revertedLedger(chainID string, height uint64) *ledger.MockLedger {
	led := new(ledger.MockLedger)
	led.On("ChainID").Return(chainID).Maybe()
	led.On("TransactionStatus", mock.Anything, mock.Anything).Return(interfaces.TransactionStatus{
		Found:       true,
		Reverted:    true,
		BlockHeight: height,
	}, nil)
	led.On("Close").Return().Maybe()
	return led
}

func pendingLedger(chainID string) *ledger.MockLedger {
	led := new(ledger.MockLedger)
	led.On("ChainID").Return(chainID).Maybe()
	led.On("TransactionStatus", mock.Anything, mock.Anything).Return(interfaces.TransactionStatus{
		Found:             true,
		BlockHeight:       100,
		ConfirmationCount: 1,
	}, nil)
	led.On("Close").Return().Maybe()
	return led
}

func notFoundLedger(chainID string) *ledger.MockLedger {
	led := new(ledger.MockLedger)
	led.On("ChainID").Return(chainID).Maybe()
	led.On("TransactionStatus", mock.Anything, mock.Anything).Return(interfaces.TransactionStatus{}, nil)
	led.On("Close").Return().Maybe()
	return led
}

func newHarness(t *testing.T, ledgers map[string]*ledger.MockLedger) *harness {
	t.Helper()

	content := []byte("the attested document body")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), content, 0644))

	source, err := storage.NewFileSource(dir, testLogger())
	require.NoError(t, err)

	locator, err := interfaces.NewContentLocator(
		"file://"+filepath.Join(dir, "doc.txt"),
		interfaces.ComputeDigest(content),
	)
	require.NoError(t, err)

	key, err := cryptoutils.GenerateSigningKey()
	require.NoError(t, err)
	stub := oracle.NewStub(key)
	stub.Anchors = []interfaces.ChainAnchor{
		{ChainID: "eth-mainnet", TransactionRef: txEth},
		{ChainID: "polygon", TransactionRef: txPolygon},
	}

	dialer := new(ledger.MockLedgerDialer)
	for chainID, led := range ledgers {
		dialer.On("Dial", mock.Anything, chainID).Return(led, nil)
	}

	tracker := ledger.NewTracker(dialer, ledger.Policy{
		RequiredDepth: 12,
		Quorum:        2,
		PollInterval:  5 * time.Millisecond,
		NotFoundGrace: time.Minute,
	}, testLogger())

	proofs, err := storage.NewFileProofStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	client := oracle.NewClient(stub, oracle.ClientConfig{
		PollInterval:      time.Millisecond,
		Ceiling:           5 * time.Second,
		AuthorizedSigners: []common.Address{stub.Address()},
		Log:               testLogger(),
	})

	eng, err := New(Config{
		Source:  source,
		Oracle:  client,
		Tracker: tracker,
		Proofs:  proofs,
		Verifier: verifier.New(dialer, verifier.Options{
			RequiredDepth:     12,
			AuthorizedSigners: []common.Address{stub.Address()},
		}, testLogger()),
		TrackingCeiling: 5 * time.Second,
		Log:             testLogger(),
	})
	require.NoError(t, err)

	return &harness{engine: eng, stub: stub, dialer: dialer, locator: locator, content: content}
}

func TestAttestEndToEnd(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": confirmedLedger("eth-mainnet", 19_000_012, 25),
		"polygon":     confirmedLedger("polygon", 52_118_400, 300),
	})

	artifact, err := h.engine.Attest(context.Background(), h.locator, testMetadata)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	metadataDigest, derr := canonical.MetadataDigest(testMetadata)
	require.NoError(t, derr)
	wantID := interfaces.DeriveDocumentID(interfaces.ComputeDigest(h.content), metadataDigest)

	require.Equal(t, wantID, artifact.DocumentID)
	require.Equal(t, interfaces.AggregateConfirmed, artifact.AggregateStatus)
	require.Equal(t, interfaces.QuorumSpec{Required: 2, Total: 2}, artifact.Quorum)
	require.Len(t, artifact.ChainConfirmations, 2)
	require.Equal(t, interfaces.ConfirmationConfirmed, artifact.ChainConfirmations["eth-mainnet"].Status)
	require.Equal(t, interfaces.ConfirmationConfirmed, artifact.ChainConfirmations["polygon"].Status)
	require.True(t, artifact.OracleReport.Finalized)

	stored, err := h.engine.Proof(context.Background(), artifact.DocumentID)
	require.NoError(t, err)
	require.Equal(t, artifact.ArtifactChecksum, stored.ArtifactChecksum)
}

func TestAttestThenVerify(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": confirmedLedger("eth-mainnet", 19_000_012, 25),
		"polygon":     confirmedLedger("polygon", 52_118_400, 300),
	})
	ctx := context.Background()

	artifact, err := h.engine.Attest(ctx, h.locator, testMetadata)
	require.NoError(t, err)

	// Content omitted: the engine refetches it through the locator.
	report, err := h.engine.Verify(ctx, artifact, nil, testMetadata)
	require.NoError(t, err)
	require.True(t, report.Verified(), "verdict: %s, stages: %+v", report.Verdict, report.Stages)

	// Explicit wrong content fails verification without being an error.
	report, err = h.engine.Verify(ctx, artifact, []byte("some other document"), testMetadata)
	require.NoError(t, err)
	require.False(t, report.Verified())
}

func TestAttestRejectsWrongContent(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": confirmedLedger("eth-mainnet", 19_000_012, 25),
		"polygon":     confirmedLedger("polygon", 52_118_400, 300),
	})

	tampered, err := interfaces.NewContentLocator(h.locator.URI, interfaces.ComputeDigest([]byte("expected different bytes")))
	require.NoError(t, err)

	_, err = h.engine.Attest(context.Background(), tampered, testMetadata)
	var verr *interfaces.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "content_digest", verr.Field)
}

func TestAttestOracleRejection(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": confirmedLedger("eth-mainnet", 19_000_012, 25),
		"polygon":     confirmedLedger("polygon", 52_118_400, 300),
	})
	h.stub.RejectReason = "digest not observed on source"

	artifact, err := h.engine.Attest(context.Background(), h.locator, testMetadata)
	require.Nil(t, artifact)
	var verr *interfaces.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Reason, "digest not observed")

	// A rejected request seals nothing.
	metadataDigest, derr := canonical.MetadataDigest(testMetadata)
	require.NoError(t, derr)
	wantID := interfaces.DeriveDocumentID(interfaces.ComputeDigest(h.content), metadataDigest)
	_, err = h.engine.Proof(context.Background(), wantID)
	require.ErrorIs(t, err, interfaces.ErrProofNotFound)
}

func TestAttestQuorumUnreachable(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": revertedLedger("eth-mainnet", 19_000_012),
		"polygon":     confirmedLedger("polygon", 52_118_400, 300),
	})

	artifact, err := h.engine.Attest(context.Background(), h.locator, testMetadata)

	var qerr *interfaces.QuorumUnreachableError
	require.ErrorAs(t, err, &qerr)
	require.Equal(t, 2, qerr.Required)
	require.Contains(t, qerr.FailureReasons["eth-mainnet"], "reverted")

	// The negative artifact documents the failed run and is persisted.
	require.NotNil(t, artifact)
	require.Equal(t, interfaces.AggregateFailed, artifact.AggregateStatus)
	require.Equal(t, interfaces.ConfirmationFailed, artifact.ChainConfirmations["eth-mainnet"].Status)

	stored, err := h.engine.Proof(context.Background(), artifact.DocumentID)
	require.NoError(t, err)
	require.Equal(t, interfaces.AggregateFailed, stored.AggregateStatus)
}

func TestAttestTrackingCeiling(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": pendingLedger("eth-mainnet"),
		"polygon":     pendingLedger("polygon"),
	})
	h.engine.ceiling = 50 * time.Millisecond

	artifact, err := h.engine.Attest(context.Background(), h.locator, testMetadata)

	var terr *interfaces.TimeoutError
	require.ErrorAs(t, err, &terr)
	require.NotNil(t, artifact)
	require.Equal(t, interfaces.AggregatePending, artifact.AggregateStatus)
	for _, record := range artifact.ChainConfirmations {
		require.Equal(t, interfaces.ConfirmationPending, record.Status)
	}
}

func TestAttestCeilingBeforeFirstReceipt(t *testing.T) {
	// No chain ever produces a receipt before the ceiling: the sealed
	// artifact must still carry the pending aggregate, not a zero value.
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": notFoundLedger("eth-mainnet"),
		"polygon":     notFoundLedger("polygon"),
	})
	h.engine.ceiling = 50 * time.Millisecond

	artifact, err := h.engine.Attest(context.Background(), h.locator, testMetadata)

	var terr *interfaces.TimeoutError
	require.ErrorAs(t, err, &terr)
	require.NotNil(t, artifact)
	require.Equal(t, interfaces.AggregatePending, artifact.AggregateStatus)
	for _, record := range artifact.ChainConfirmations {
		require.Equal(t, interfaces.ConfirmationPending, record.Status)
	}
}

func TestAttestCanceled(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": pendingLedger("eth-mainnet"),
		"polygon":     pendingLedger("polygon"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	artifact, err := h.engine.Attest(ctx, h.locator, testMetadata)
	require.Nil(t, artifact)
	require.ErrorIs(t, err, context.Canceled)
}

func TestVerifyWithoutVerifier(t *testing.T) {
	h := newHarness(t, map[string]*ledger.MockLedger{
		"eth-mainnet": confirmedLedger("eth-mainnet", 19_000_012, 25),
		"polygon":     confirmedLedger("polygon", 52_118_400, 300),
	})
	h.engine.verifier = nil

	_, err := h.engine.Verify(context.Background(), &interfaces.ProofArtifact{}, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no verifier configured")
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "content source")
}
