// Package cryptoutils provides the signing primitives for oracle reports:
// the report signing hash, secp256k1 signing and signer recovery, and
// signing-key loading and derivation.
package cryptoutils

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// ErrUnauthorizedSigner is returned when a report signature recovers to an
// address outside the authorized oracle set.
var ErrUnauthorizedSigner = errors.New("report signer not authorized")

// ReportSigningHash computes the hash an oracle signs over: the request ID,
// the reported digest and the issue timestamp as big-endian unix seconds, in
// that order. Signing and validation both derive the hash through this
// function; the field order is part of the wire contract.
func ReportSigningHash(requestID string, reportedDigest interfaces.Digest, issuedAt time.Time) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(issuedAt.Unix()))

	data := append([]byte(requestID), reportedDigest.Bytes()...)
	data = append(data, ts[:]...)
	return crypto.Keccak256Hash(data)
}

// SignReport signs the report hash with a secp256k1 key, producing the
// 65-byte [R || S || V] signature carried in an oracle report.
func SignReport(key *ecdsa.PrivateKey, requestID string, reportedDigest interfaces.Digest, issuedAt time.Time) (interfaces.Signature, error) {
	hash := ReportSigningHash(requestID, reportedDigest, issuedAt)
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("signing report hash: %w", err)
	}
	return interfaces.Signature(sig), nil
}

// RecoverReportSigner recovers the address that signed a report.
func RecoverReportSigner(report *interfaces.OracleReport) (common.Address, error) {
	if len(report.Signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length %d, expected 65", len(report.Signature))
	}

	hash := ReportSigningHash(report.RequestID, report.ReportedDigest, report.IssuedAt)
	pubkey, err := crypto.SigToPub(hash.Bytes(), report.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering report signer: %w", err)
	}

	return crypto.PubkeyToAddress(*pubkey), nil
}

// VerifyReportSignature checks that the report signature recovers to one of
// the authorized oracle addresses.
func VerifyReportSignature(report *interfaces.OracleReport, authorized []common.Address) error {
	signer, err := RecoverReportSigner(report)
	if err != nil {
		return err
	}

	for _, addr := range authorized {
		if signer == addr {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnauthorizedSigner, signer.Hex())
}
