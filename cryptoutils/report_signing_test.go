package cryptoutils

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

func testReport(t *testing.T) (*interfaces.OracleReport, common.Address) {
	t.Helper()

	key, err := GenerateSigningKey()
	require.NoError(t, err)

	digest := interfaces.ComputeDigest([]byte("document"))
	issuedAt := time.Now().UTC().Truncate(time.Second)

	sig, err := SignReport(key, "req-123", digest, issuedAt)
	require.NoError(t, err)

	return &interfaces.OracleReport{
		RequestID:      "req-123",
		ReportedDigest: digest,
		Signature:      sig,
		IssuedAt:       issuedAt,
		Finalized:      true,
	}, crypto.PubkeyToAddress(key.PublicKey)
}

func TestSignAndRecoverRoundTrip(t *testing.T) {
	report, signer := testReport(t)

	recovered, err := RecoverReportSigner(report)
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)
}

func TestVerifyReportSignatureAuthorization(t *testing.T) {
	report, signer := testReport(t)

	require.NoError(t, VerifyReportSignature(report, []common.Address{signer}))

	otherKey, err := GenerateSigningKey()
	require.NoError(t, err)
	other := crypto.PubkeyToAddress(otherKey.PublicKey)

	err = VerifyReportSignature(report, []common.Address{other})
	assert.ErrorIs(t, err, ErrUnauthorizedSigner)

	err = VerifyReportSignature(report, nil)
	assert.ErrorIs(t, err, ErrUnauthorizedSigner)
}

func TestVerifyReportSignatureTamperDetection(t *testing.T) {
	report, signer := testReport(t)
	authorized := []common.Address{signer}

	tamperedDigest := *report
	tamperedDigest.ReportedDigest = interfaces.ComputeDigest([]byte("other document"))
	assert.Error(t, VerifyReportSignature(&tamperedDigest, authorized))

	tamperedRequest := *report
	tamperedRequest.RequestID = "req-999"
	assert.Error(t, VerifyReportSignature(&tamperedRequest, authorized))

	tamperedTime := *report
	tamperedTime.IssuedAt = report.IssuedAt.Add(time.Hour)
	assert.Error(t, VerifyReportSignature(&tamperedTime, authorized))

	tamperedSig := *report
	tamperedSig.Signature = append(interfaces.Signature{}, report.Signature...)
	tamperedSig.Signature[10] ^= 0xff
	assert.Error(t, VerifyReportSignature(&tamperedSig, authorized))

	truncated := *report
	truncated.Signature = report.Signature[:64]
	assert.Error(t, VerifyReportSignature(&truncated, authorized))
}

func TestSigningHashFieldOrder(t *testing.T) {
	digest := interfaces.ComputeDigest([]byte("content"))
	at := time.Unix(1700000000, 0).UTC()

	base := ReportSigningHash("req-1", digest, at)
	assert.Equal(t, base, ReportSigningHash("req-1", digest, at), "hash must be deterministic")
	assert.NotEqual(t, base, ReportSigningHash("req-2", digest, at))
	assert.NotEqual(t, base, ReportSigningHash("req-1", interfaces.ComputeDigest([]byte("x")), at))
	assert.NotEqual(t, base, ReportSigningHash("req-1", digest, at.Add(time.Second)))

	// Sub-second drift does not change the hash, matching the wire format's
	// whole-second timestamps.
	assert.Equal(t, base, ReportSigningHash("req-1", digest, at.Add(500*time.Millisecond)))
}

func TestDeriveSigningKeyDeterministic(t *testing.T) {
	first, err := DeriveSigningKey("correct horse battery staple")
	require.NoError(t, err)

	second, err := DeriveSigningKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(first.PublicKey), crypto.PubkeyToAddress(second.PublicKey))

	other, err := DeriveSigningKey("different passphrase")
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(first.PublicKey), crypto.PubkeyToAddress(other.PublicKey))
}

func TestLoadSigningKey(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)

	path := t.TempDir() + "/oracle.key"
	require.NoError(t, crypto.SaveECDSA(path, key))

	loaded, err := LoadSigningKey(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(loaded.PublicKey))

	_, err = LoadSigningKey(t.TempDir() + "/missing.key")
	assert.Error(t, err)
}
