package interfaces

import "context"

// TransactionStatus is a ledger's answer to one anchoring-transaction query.
type TransactionStatus struct {
	// Found reports whether the ledger knows the transaction at all.
	Found bool

	// Reverted reports whether the transaction executed and failed. A
	// reverted anchor can never confirm.
	Reverted bool

	// BlockHeight is the height of the block that includes the transaction.
	BlockHeight uint64

	// ConfirmationCount is how many blocks deep the transaction is buried,
	// counting the including block itself.
	ConfirmationCount uint64
}

// Ledger answers status queries for anchoring transactions on a single chain.
type Ledger interface {
	// ChainID identifies the chain this ledger serves.
	ChainID() string

	// TransactionStatus looks up an anchoring transaction. A transaction the
	// ledger does not know yet is reported with Found false, not an error.
	TransactionStatus(ctx context.Context, txRef string) (TransactionStatus, error)

	// Close releases the underlying connection.
	Close()
}

// LedgerDialer opens ledger connections by chain ID. The verifier depends on
// it to re-query chains named in an artifact without sharing engine state.
type LedgerDialer interface {
	Dial(ctx context.Context, chainID string) (Ledger, error)
}

// ConfirmationStatus is the per-chain confirmation lifecycle. Confirmed and
// failed are terminal; a record never leaves a terminal status.
type ConfirmationStatus string

const (
	// ConfirmationPending means the anchor has not yet reached the required depth.
	ConfirmationPending ConfirmationStatus = "pending"

	// ConfirmationConfirmed means the anchor reached the required depth.
	ConfirmationConfirmed ConfirmationStatus = "confirmed"

	// ConfirmationFailed means the anchor reverted, vanished or could not be tracked.
	ConfirmationFailed ConfirmationStatus = "failed"
)

// String returns the status name.
func (s ConfirmationStatus) String() string {
	return string(s)
}

// ChainConfirmation records the tracked state of one anchoring transaction.
// Only the confirmation tracker's polling loop mutates it.
type ChainConfirmation struct {
	ChainID           string             `json:"chain_id"`
	TransactionRef    string             `json:"transaction_ref"`
	BlockHeight       uint64             `json:"block_height,omitempty"`
	ConfirmationCount uint64             `json:"confirmation_count"`
	Status            ConfirmationStatus `json:"status"`
	FailureReason     string             `json:"failure_reason,omitempty"`
}

// Terminal reports whether the record is frozen.
func (c ChainConfirmation) Terminal() bool {
	return c.Status == ConfirmationConfirmed || c.Status == ConfirmationFailed
}

// AggregateStatus is the quorum decision across all tracked chains.
type AggregateStatus string

const (
	// AggregatePending means neither quorum nor impossibility has been established.
	AggregatePending AggregateStatus = "pending"

	// AggregateConfirmed means at least the quorum of chains confirmed.
	AggregateConfirmed AggregateStatus = "confirmed"

	// AggregateFailed means quorum is mathematically unreachable.
	AggregateFailed AggregateStatus = "failed"
)

// String returns the status name.
func (s AggregateStatus) String() string {
	return string(s)
}

// Terminal reports whether the aggregate is settled.
func (s AggregateStatus) Terminal() bool {
	return s == AggregateConfirmed || s == AggregateFailed
}
