package oracle

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/ruteri/content-attestation-engine/cryptoutils"
	"github.com/ruteri/content-attestation-engine/interfaces"
)

// Stub is an in-memory oracle service for development and tests. It signs
// real secp256k1 reports over the submitted document ID and finalizes a
// request after a configurable number of status polls. The fault fields
// inject the failure modes the client must handle.
type Stub struct {
	// PollsUntilFinal is how many status calls a request stays pending
	// before finalizing. Zero finalizes on the first poll.
	PollsUntilFinal int

	// Anchors is returned with every finalized report.
	Anchors []interfaces.ChainAnchor

	// RejectReason, when set, rejects every request with this reason
	// instead of finalizing.
	RejectReason string

	// ReportDigest, when set, overrides the digest the stub reports,
	// simulating an oracle that observed different content.
	ReportDigest *interfaces.Digest

	// CorruptSignature flips a byte in every signature.
	CorruptSignature bool

	// ReportAge backdates the issue timestamp of every report.
	ReportAge time.Duration

	// FailSubmits makes the next n Submit calls fail transiently.
	FailSubmits int

	// FailStatuses makes the next n Status calls fail transiently.
	FailStatuses int

	key *ecdsa.PrivateKey

	mu       sync.Mutex
	requests map[string]*stubRequest
}

type stubRequest struct {
	documentID interfaces.DocumentID
	polls      int
}

// NewStub creates a stub oracle signing with the given key.
func NewStub(key *ecdsa.PrivateKey) *Stub {
	return &Stub{
		key:      key,
		requests: make(map[string]*stubRequest),
	}
}

// Address returns the stub's signing address, for signer allowlists.
func (s *Stub) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Submit registers a request and assigns it a request ID.
func (s *Stub) Submit(_ context.Context, documentID interfaces.DocumentID, locator interfaces.ContentLocator) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSubmits > 0 {
		s.FailSubmits--
		return "", interfaces.Transient(errors.New("stub oracle submit unavailable"))
	}

	if err := locator.Validate(); err != nil {
		return "", fmt.Errorf("rejecting submission: %w", err)
	}

	requestID := uuid.NewString()
	s.requests[requestID] = &stubRequest{documentID: documentID}
	return requestID, nil
}

// Status reports a request pending until it has been polled enough times,
// then returns a signed, finalized report plus the configured anchors.
func (s *Stub) Status(_ context.Context, requestID string) (interfaces.OracleStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailStatuses > 0 {
		s.FailStatuses--
		return interfaces.OracleStatus{}, interfaces.Transient(errors.New("stub oracle status unavailable"))
	}

	req, ok := s.requests[requestID]
	if !ok {
		return interfaces.OracleStatus{}, fmt.Errorf("unknown request %q", requestID)
	}

	if s.RejectReason != "" {
		return interfaces.OracleStatus{State: interfaces.OracleStatusRejected, Reason: s.RejectReason}, nil
	}

	req.polls++
	if req.polls <= s.PollsUntilFinal {
		return interfaces.OracleStatus{State: interfaces.OracleStatusPending}, nil
	}

	report, err := s.signReport(requestID, req.documentID)
	if err != nil {
		return interfaces.OracleStatus{}, err
	}

	return interfaces.OracleStatus{
		State:   interfaces.OracleStatusFinalized,
		Report:  report,
		Anchors: s.Anchors,
	}, nil
}

func (s *Stub) signReport(requestID string, documentID interfaces.DocumentID) (*interfaces.OracleReport, error) {
	digest := documentID
	if s.ReportDigest != nil {
		digest = *s.ReportDigest
	}

	// Whole seconds only, matching the wire format's timestamp precision.
	issuedAt := time.Now().UTC().Truncate(time.Second).Add(-s.ReportAge)

	sig, err := cryptoutils.SignReport(s.key, requestID, digest, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("stub signing report: %w", err)
	}
	if s.CorruptSignature {
		sig = append(interfaces.Signature{}, sig...)
		sig[10] ^= 0xff
	}

	return &interfaces.OracleReport{
		RequestID:      requestID,
		ReportedDigest: digest,
		Signature:      sig,
		IssuedAt:       issuedAt,
		Finalized:      true,
	}, nil
}
