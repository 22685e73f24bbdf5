package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/proof"
)

func storedArtifact(t *testing.T, createdAt time.Time) *interfaces.ProofArtifact {
	t.Helper()

	contentDigest := interfaces.ComputeDigest(testContent)
	metadataDigest := interfaces.ComputeDigest([]byte(`{"type":"note"}`))
	documentID := interfaces.DeriveDocumentID(contentDigest, metadataDigest)

	locator, err := interfaces.NewContentLocator("file:///srv/docs/note.txt", contentDigest)
	require.NoError(t, err)

	signature := bytes.Repeat([]byte{0x5a}, 64)
	signature = append(signature, 0x01)

	assembler := proof.NewAssembler(testLogger()).WithClock(func() time.Time { return createdAt })
	artifact, err := assembler.Assemble(
		documentID,
		locator,
		metadataDigest,
		&interfaces.OracleReport{
			RequestID:      "req-7c2f09d1",
			ReportedDigest: documentID,
			Signature:      signature,
			IssuedAt:       createdAt.Add(-time.Minute),
			Finalized:      true,
		},
		map[string]interfaces.ChainConfirmation{
			"eth-mainnet": {
				ChainID:           "eth-mainnet",
				TransactionRef:    "0x" + interfaces.ComputeDigest([]byte("tx-eth")).String(),
				BlockHeight:       19_000_012,
				ConfirmationCount: 18,
				Status:            interfaces.ConfirmationConfirmed,
			},
		},
		interfaces.AggregateConfirmed,
		interfaces.QuorumSpec{Required: 1, Total: 1},
	)
	require.NoError(t, err)
	return artifact
}

func TestProofStoreRoundTrip(t *testing.T) {
	store, err := NewFileProofStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	artifact := storedArtifact(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, artifact))

	got, err := store.Get(ctx, artifact.DocumentID)
	require.NoError(t, err)
	require.Equal(t, artifact, got)
}

func TestProofStoreNotFound(t *testing.T) {
	store, err := NewFileProofStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	artifact := storedArtifact(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	_, err = store.Get(context.Background(), artifact.DocumentID)
	require.ErrorIs(t, err, interfaces.ErrProofNotFound)
}

func TestProofStorePutIsImmutable(t *testing.T) {
	store, err := NewFileProofStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	sealed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	artifact := storedArtifact(t, sealed)
	require.NoError(t, store.Put(ctx, artifact))

	// Re-storing the identical artifact is a no-op.
	require.NoError(t, store.Put(ctx, storedArtifact(t, sealed)))

	// A different artifact for the same document is rejected.
	conflicting := storedArtifact(t, sealed.Add(time.Hour))
	require.Equal(t, artifact.DocumentID, conflicting.DocumentID)
	err = store.Put(ctx, conflicting)
	require.Error(t, err)
	require.Contains(t, err.Error(), "different artifact is already stored")

	got, err := store.Get(ctx, artifact.DocumentID)
	require.NoError(t, err)
	require.Equal(t, sealed, got.CreatedAt)
}

func TestProofStoreRejectsBrokenChecksum(t *testing.T) {
	store, err := NewFileProofStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	artifact := storedArtifact(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	artifact.AggregateStatus = interfaces.AggregateFailed

	err = store.Put(context.Background(), artifact)
	var fault *interfaces.IntegrityFault
	require.ErrorAs(t, err, &fault)
}

func TestProofStoreDetectsOnDiskTampering(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileProofStore(dir, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	artifact := storedArtifact(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	require.NoError(t, store.Put(ctx, artifact))

	path := filepath.Join(dir, artifact.DocumentID.String()+".json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doctored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doctored))
	doctored["aggregate_status"] = json.RawMessage(`"failed"`)
	tampered, err := json.Marshal(doctored)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0644))

	_, err = store.Get(ctx, artifact.DocumentID)
	var fault *interfaces.IntegrityFault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, "artifact checksum", fault.Op)
}

func TestProofStoreDetectsMisfiledArtifact(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileProofStore(dir, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	artifact := storedArtifact(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	require.NoError(t, store.Put(ctx, artifact))

	// Copy the stored file under another document's name.
	otherID := interfaces.ComputeDigest([]byte("some other document"))
	raw, err := os.ReadFile(filepath.Join(dir, artifact.DocumentID.String()+".json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, otherID.String()+".json"), raw, 0644))

	_, err = store.Get(ctx, otherID)
	var fault *interfaces.IntegrityFault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, "proof store lookup", fault.Op)
}
