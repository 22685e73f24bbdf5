package interfaces

import "time"

// QuorumSpec records the quorum rule an artifact was assembled under: at
// least Required of Total chains had to confirm.
type QuorumSpec struct {
	Required int `json:"required"`
	Total    int `json:"total"`
}

// ProofArtifact is the portable, self-checksummed record of one attestation
// run. It is immutable once assembled. ArtifactChecksum is a digest over the
// canonical serialization of every other field, so tampering with the
// artifact is detectable without any ledger access. A failed aggregate still
// yields an artifact; a negative proof documents that attestation did not
// succeed.
type ProofArtifact struct {
	DocumentID         DocumentID                   `json:"document_id"`
	Locator            ContentLocator               `json:"locator"`
	MetadataDigest     Digest                       `json:"metadata_digest"`
	DigestAlgorithm    string                       `json:"digest_algorithm"`
	OracleReport       OracleReport                 `json:"oracle_report"`
	ChainConfirmations map[string]ChainConfirmation `json:"chain_confirmations"`
	AggregateStatus    AggregateStatus              `json:"aggregate_status"`
	Quorum             QuorumSpec                   `json:"quorum"`
	CreatedAt          time.Time                    `json:"created_at"`
	ArtifactChecksum   Digest                       `json:"artifact_checksum"`
}

// Verification stage names, in evaluation order.
const (
	StageArtifactChecksum    = "artifact_checksum"
	StageContentDigest       = "content_digest"
	StageMetadataDigest      = "metadata_digest"
	StageDocumentID          = "document_id"
	StageOracleSignature     = "oracle_signature"
	StageOracleDigest        = "oracle_digest"
	StageLedgerConfirmations = "ledger_confirmations"
	StageQuorum              = "quorum"
)

// StageStatus is the outcome of a single verification stage.
type StageStatus string

const (
	// StagePass means the stage was re-derived and matched.
	StagePass StageStatus = "pass"

	// StageFail means the stage was re-derived and did not match.
	StageFail StageStatus = "fail"

	// StageSkipped means the stage could not be evaluated, such as the
	// metadata digest when the caller does not hold the original metadata.
	StageSkipped StageStatus = "skipped"
)

// StageResult is one verification stage's outcome. Expected and Actual carry
// the diffed values when the stage fails.
type StageResult struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Detail   string      `json:"detail,omitempty"`
	Expected string      `json:"expected,omitempty"`
	Actual   string      `json:"actual,omitempty"`
}

// Verdict is the overall verification outcome.
type Verdict string

const (
	// VerdictVerified means every evaluated stage passed.
	VerdictVerified Verdict = "VERIFIED"

	// VerdictFailed means at least one stage failed.
	VerdictFailed Verdict = "FAILED"
)

// VerificationReport lists every stage outcome and the overall verdict. The
// verdict is VERIFIED only when no stage failed; a failing report always
// names the failing stage, never a bare boolean.
type VerificationReport struct {
	DocumentID DocumentID    `json:"document_id"`
	Verdict    Verdict       `json:"verdict"`
	Stages     []StageResult `json:"stages"`
	VerifiedAt time.Time     `json:"verified_at"`
}

// Verified reports whether the overall verdict is VERIFIED.
func (r *VerificationReport) Verified() bool {
	return r.Verdict == VerdictVerified
}

// Stage returns the named stage result, or nil if the stage is absent.
func (r *VerificationReport) Stage(name string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == name {
			return &r.Stages[i]
		}
	}
	return nil
}
