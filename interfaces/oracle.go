package interfaces

import (
	"context"
	"time"
)

// RequestState is the lifecycle state of an attestation request. A request
// moves created, submitted, polling and settles in exactly one of finalized,
// timed_out or rejected.
type RequestState string

const (
	// StateCreated means the request exists locally but has not reached the oracle.
	StateCreated RequestState = "created"

	// StateSubmitted means the oracle accepted the request and assigned a request ID.
	StateSubmitted RequestState = "submitted"

	// StatePolling means the client is waiting for the oracle to finalize.
	StatePolling RequestState = "polling"

	// StateFinalized means a validated oracle report is available.
	StateFinalized RequestState = "finalized"

	// StateTimedOut means the wall-clock ceiling elapsed before finalization.
	StateTimedOut RequestState = "timed_out"

	// StateRejected means the oracle refused the request or its report failed validation.
	StateRejected RequestState = "rejected"
)

// String returns the state name.
func (s RequestState) String() string {
	return string(s)
}

// Terminal reports whether the state is final.
func (s RequestState) Terminal() bool {
	switch s {
	case StateFinalized, StateTimedOut, StateRejected:
		return true
	default:
		return false
	}
}

// AttestationRequest is the engine-side record of one oracle attestation.
// It is owned exclusively by the oracle client until it reaches a terminal
// state; nothing else writes to it.
type AttestationRequest struct {
	DocumentID  DocumentID     `json:"document_id"`
	Locator     ContentLocator `json:"locator"`
	RequestID   string         `json:"request_id,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	State       RequestState   `json:"state"`
}

// OracleReport is the oracle's signed statement that it observed a digest.
// The engine treats it as untrusted input: signature and freshness are
// validated before the report is used anywhere.
type OracleReport struct {
	RequestID      string    `json:"request_id"`
	ReportedDigest Digest    `json:"reported_digest"`
	Signature      Signature `json:"signature"`
	IssuedAt       time.Time `json:"issued_at"`
	Finalized      bool      `json:"finalized"`
}

// ChainAnchor names the transaction through which the oracle anchored a
// report on one ledger. Anchors arrive with the finalized oracle status and
// seed the confirmation tracker.
type ChainAnchor struct {
	ChainID        string `json:"chain_id"`
	TransactionRef string `json:"transaction_ref"`
}

// Oracle-side request phases reported by the status query.
const (
	OracleStatusPending   = "pending"
	OracleStatusFinalized = "finalized"
	OracleStatusRejected  = "rejected"
)

// OracleStatus is one poll's view of a request on the oracle side. Report
// and Anchors are set only once State is finalized; Reason explains a
// rejection.
type OracleStatus struct {
	State   string        `json:"state"`
	Report  *OracleReport `json:"report,omitempty"`
	Anchors []ChainAnchor `json:"anchors,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// OracleService is the external attestation oracle the engine submits
// document digests to.
type OracleService interface {
	// Submit registers an attestation request and returns the oracle-assigned
	// request ID.
	Submit(ctx context.Context, documentID DocumentID, locator ContentLocator) (string, error)

	// Status reports the current oracle-side state of a request.
	Status(ctx context.Context, requestID string) (OracleStatus, error)
}
