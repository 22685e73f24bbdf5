package interfaces

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestConstructors(t *testing.T) {
	d := ComputeDigest([]byte("hello world"))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", d.String())

	fromHex, err := NewDigestFromHex(d.String())
	require.NoError(t, err)
	assert.True(t, d.Equal(fromHex))

	fromHexPrefixed, err := NewDigestFromHex("0x" + d.String())
	require.NoError(t, err)
	assert.True(t, d.Equal(fromHexPrefixed))

	fromBytes, err := NewDigestFromBytes(d.Bytes())
	require.NoError(t, err)
	assert.True(t, d.Equal(fromBytes))

	_, err = NewDigestFromBytes([]byte("short"))
	assert.Error(t, err)

	_, err = NewDigestFromHex("abc123")
	assert.Error(t, err)

	_, err = NewDigestFromHex("zz4d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9")
	assert.Error(t, err)
}

func TestDigestJSONRoundTrip(t *testing.T) {
	d := ComputeDigest([]byte("payload"))

	encoded, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+d.String()+`"`, string(encoded))

	var decoded Digest
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, d.Equal(decoded))

	var bad Digest
	assert.Error(t, json.Unmarshal([]byte(`"deadbeef"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}

func TestDeriveDocumentID(t *testing.T) {
	content := ComputeDigest([]byte("content"))
	metadata := ComputeDigest([]byte("metadata"))

	id := DeriveDocumentID(content, metadata)
	again := DeriveDocumentID(content, metadata)
	assert.True(t, id.Equal(again), "derivation must be deterministic")

	// Argument order is part of the identity.
	swapped := DeriveDocumentID(metadata, content)
	assert.False(t, id.Equal(swapped))

	otherContent := DeriveDocumentID(ComputeDigest([]byte("content2")), metadata)
	assert.False(t, id.Equal(otherContent))

	otherMetadata := DeriveDocumentID(content, ComputeDigest([]byte("metadata2")))
	assert.False(t, id.Equal(otherMetadata))
}

func TestSignatureJSON(t *testing.T) {
	sig := Signature{0x01, 0x02, 0xff}

	encoded, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.Equal(t, `"0102ff"`, string(encoded))

	var decoded Signature
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, sig, decoded)

	var prefixed Signature
	require.NoError(t, json.Unmarshal([]byte(`"0x0102ff"`), &prefixed))
	assert.Equal(t, sig, prefixed)

	var bad Signature
	assert.Error(t, json.Unmarshal([]byte(`"not-hex"`), &bad))
}

func TestContentLocatorValidation(t *testing.T) {
	digest := ComputeDigest([]byte("data"))

	loc, err := NewContentLocator("file:///var/data/doc.bin", digest)
	require.NoError(t, err)
	assert.Equal(t, "file", loc.Scheme())
	assert.Equal(t, "file:///var/data/doc.bin", loc.String())

	for _, uri := range []string{
		"ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"s3://proofs-bucket/documents/doc.bin",
		"vault://vault.example.com:8200/secret/data/doc",
		"https://content.example.com/doc.bin",
	} {
		_, err := NewContentLocator(uri, digest)
		assert.NoError(t, err, uri)
	}

	_, err = NewContentLocator("ftp://example.com/doc.bin", digest)
	assert.ErrorIs(t, err, ErrInvalidLocator)

	_, err = NewContentLocator("file:///var/data/doc.bin", Digest{})
	assert.ErrorIs(t, err, ErrInvalidLocator)
}

func TestRequestStateTerminal(t *testing.T) {
	for _, s := range []RequestState{StateCreated, StateSubmitted, StatePolling} {
		assert.False(t, s.Terminal(), s.String())
	}
	for _, s := range []RequestState{StateFinalized, StateTimedOut, StateRejected} {
		assert.True(t, s.Terminal(), s.String())
	}
}

func TestErrorTaxonomy(t *testing.T) {
	fault := &IntegrityFault{Op: "metadata digest", Expected: "aa", Actual: "bb"}
	assert.Contains(t, fault.Error(), "metadata digest")
	assert.Contains(t, fault.Error(), "aa")

	verr := &ValidationError{Field: "signature", Reason: "unauthorized signer"}
	assert.Contains(t, verr.Error(), "signature")

	assert.False(t, IsTransient(verr))
	assert.True(t, IsTransient(Transient(verr)))
	assert.Nil(t, Transient(nil))

	qerr := &QuorumUnreachableError{Required: 2, Total: 3, Failed: 2}
	assert.Contains(t, qerr.Error(), "2 of 3")
}

func TestVerificationReportStageLookup(t *testing.T) {
	report := VerificationReport{
		Verdict: VerdictFailed,
		Stages: []StageResult{
			{Stage: StageContentDigest, Status: StagePass},
			{Stage: StageOracleSignature, Status: StageFail, Detail: "unauthorized signer"},
		},
	}

	assert.False(t, report.Verified())
	require.NotNil(t, report.Stage(StageOracleSignature))
	assert.Equal(t, StageFail, report.Stage(StageOracleSignature).Status)
	assert.Nil(t, report.Stage(StageQuorum))
}
