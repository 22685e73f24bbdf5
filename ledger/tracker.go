package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/metrics"
)

// Default tracking policy values.
const (
	DefaultRequiredDepth = 12
	DefaultPollInterval  = 5 * time.Second
	DefaultNotFoundGrace = 2 * time.Minute
)

// Policy controls how anchor transactions are followed to finality.
type Policy struct {
	// RequiredDepth is the confirmation count at which a transaction is
	// considered final on chains without an override.
	RequiredDepth uint64

	// ChainDepths overrides RequiredDepth per chain ID.
	ChainDepths map[string]uint64

	// Quorum is the number of chains that must confirm before the aggregate
	// does. Zero selects a simple majority of the tracked anchors.
	Quorum int

	// PollInterval is the delay between status queries on one chain.
	PollInterval time.Duration

	// NotFoundGrace bounds how long a transaction may stay unknown to its
	// chain before the confirmation is recorded as failed. The window
	// restarts whenever the transaction is seen, so a transaction dropped
	// in a reorg gets the same grace to be re-included.
	NotFoundGrace time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.RequiredDepth == 0 {
		p.RequiredDepth = DefaultRequiredDepth
	}
	if p.PollInterval == 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.NotFoundGrace == 0 {
		p.NotFoundGrace = DefaultNotFoundGrace
	}
	return p
}

func (p Policy) depthFor(chainID string) uint64 {
	if depth, ok := p.ChainDepths[chainID]; ok && depth > 0 {
		return depth
	}
	return p.RequiredDepth
}

// Tracker follows anchor transactions across ledgers until a confirmation
// quorum is reached or becomes unreachable.
type Tracker struct {
	dialer interfaces.LedgerDialer
	policy Policy
	log    *slog.Logger
}

// NewTracker creates a tracker that dials chains through the given dialer.
func NewTracker(dialer interfaces.LedgerDialer, policy Policy, log *slog.Logger) *Tracker {
	return &Tracker{
		dialer: dialer,
		policy: policy.withDefaults(),
		log:    log,
	}
}

// Track starts following the given anchors. Each anchor is polled on its own
// chain concurrently; progress is exposed through the returned Tracking.
//
// The anchor set is validated up front: it must be non-empty, free of
// duplicate chain IDs, and large enough to ever satisfy the quorum.
func (t *Tracker) Track(ctx context.Context, anchors []interfaces.ChainAnchor) (*Tracking, error) {
	if len(anchors) == 0 {
		return nil, &interfaces.ValidationError{Field: "anchors", Reason: "no anchors to track"}
	}

	seen := make(map[string]bool, len(anchors))
	for _, anchor := range anchors {
		if anchor.ChainID == "" {
			return nil, &interfaces.ValidationError{Field: "anchors", Reason: "anchor with empty chain ID"}
		}
		if anchor.TransactionRef == "" {
			return nil, &interfaces.ValidationError{Field: "anchors", Reason: fmt.Sprintf("anchor for chain %s has no transaction ref", anchor.ChainID)}
		}
		if seen[anchor.ChainID] {
			return nil, &interfaces.ValidationError{Field: "anchors", Reason: fmt.Sprintf("duplicate anchor for chain %s", anchor.ChainID)}
		}
		seen[anchor.ChainID] = true
	}

	quorum := t.policy.Quorum
	if quorum < 0 {
		return nil, &interfaces.ValidationError{Field: "quorum", Reason: fmt.Sprintf("quorum %d is negative", quorum)}
	}
	if quorum == 0 {
		quorum = len(anchors)/2 + 1
	}
	if quorum > len(anchors) {
		return nil, &interfaces.ValidationError{Field: "quorum", Reason: fmt.Sprintf("quorum %d exceeds anchor count %d", quorum, len(anchors))}
	}

	trackCtx, cancel := context.WithCancel(ctx)
	tracking := &Tracking{
		policy:  t.policy,
		log:     t.log,
		quorum:  quorum,
		agg:     interfaces.AggregatePending,
		records: make(map[string]interfaces.ChainConfirmation, len(anchors)),
		nudges:  make(map[string]chan struct{}, len(anchors)),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	for _, anchor := range anchors {
		tracking.records[anchor.ChainID] = interfaces.ChainConfirmation{
			ChainID:        anchor.ChainID,
			TransactionRef: anchor.TransactionRef,
			Status:         interfaces.ConfirmationPending,
		}
		tracking.nudges[anchor.ChainID] = make(chan struct{}, 1)
	}

	for _, anchor := range anchors {
		tracking.wg.Add(1)
		go func(anchor interfaces.ChainAnchor) {
			defer tracking.wg.Done()
			tracking.follow(trackCtx, t.dialer, anchor)
		}(anchor)
	}

	return tracking, nil
}

// Tracking is the live state of one Track call. All accessors are safe for
// concurrent use.
type Tracking struct {
	policy Policy
	log    *slog.Logger
	quorum int

	mu      sync.RWMutex
	records map[string]interfaces.ChainConfirmation
	agg     interfaces.AggregateStatus

	nudges map[string]chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Quorum returns the quorum the tracking resolves against.
func (tr *Tracking) Quorum() interfaces.QuorumSpec {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return interfaces.QuorumSpec{Required: tr.quorum, Total: len(tr.records)}
}

// Aggregate returns the current aggregate status.
func (tr *Tracking) Aggregate() interfaces.AggregateStatus {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.agg
}

// Confirmations returns a snapshot of the per-chain confirmation records.
func (tr *Tracking) Confirmations() map[string]interfaces.ChainConfirmation {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	records := make(map[string]interfaces.ChainConfirmation, len(tr.records))
	for id, record := range tr.records {
		records[id] = record
	}
	return records
}

// Nudge schedules an immediate poll of the given chain, skipping the
// remainder of its current poll interval. No-op for unknown chains.
func (tr *Tracking) Nudge(chainID string) {
	nudge, ok := tr.nudges[chainID]
	if !ok {
		return
	}
	select {
	case nudge <- struct{}{}:
	default:
	}
}

// Wait blocks until the aggregate status is terminal or the context expires.
// It returns the aggregate as of unblocking; on context expiry the returned
// error is the context's.
func (tr *Tracking) Wait(ctx context.Context) (interfaces.AggregateStatus, error) {
	select {
	case <-tr.done:
		return tr.Aggregate(), nil
	case <-ctx.Done():
		return tr.Aggregate(), ctx.Err()
	}
}

// Stop cancels all pollers and waits for them to exit. Records keep their
// last observed values.
func (tr *Tracking) Stop() {
	tr.cancel()
	tr.wg.Wait()
}

// QuorumError describes why the quorum became unreachable. It returns nil
// unless the aggregate status is failed.
func (tr *Tracking) QuorumError() *interfaces.QuorumUnreachableError {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if tr.agg != interfaces.AggregateFailed {
		return nil
	}

	qerr := &interfaces.QuorumUnreachableError{
		Required:       tr.quorum,
		Total:          len(tr.records),
		FailureReasons: make(map[string]string),
	}
	for id, record := range tr.records {
		if record.Status == interfaces.ConfirmationFailed {
			qerr.Failed++
			qerr.FailureReasons[id] = record.FailureReason
		}
	}
	return qerr
}

// update applies a new per-chain record and recomputes the aggregate.
// Terminal records and terminal aggregates are never rewritten; once the
// aggregate settles the whole record set is frozen. Reports whether the
// record was applied.
func (tr *Tracking) update(record interfaces.ChainConfirmation) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.agg.Terminal() {
		return false
	}
	if existing, ok := tr.records[record.ChainID]; ok && existing.Terminal() {
		return false
	}
	tr.records[record.ChainID] = record

	var confirmed, failed int
	for _, r := range tr.records {
		switch r.Status {
		case interfaces.ConfirmationConfirmed:
			confirmed++
		case interfaces.ConfirmationFailed:
			failed++
		}
	}

	switch {
	case confirmed >= tr.quorum:
		tr.agg = interfaces.AggregateConfirmed
	case len(tr.records)-failed < tr.quorum:
		tr.agg = interfaces.AggregateFailed
	default:
		tr.agg = interfaces.AggregatePending
		return true
	}

	close(tr.done)
	return true
}

// follow polls one anchor on its chain until the record or the whole
// aggregate goes terminal.
func (tr *Tracking) follow(ctx context.Context, dialer interfaces.LedgerDialer, anchor interfaces.ChainAnchor) {
	record := interfaces.ChainConfirmation{
		ChainID:        anchor.ChainID,
		TransactionRef: anchor.TransactionRef,
		Status:         interfaces.ConfirmationPending,
	}

	client, err := dialer.Dial(ctx, anchor.ChainID)
	if err != nil {
		metrics.IncLedgerError(anchor.ChainID)
		tr.log.Error("ledger unreachable", "chain", anchor.ChainID, "err", err)
		record.Status = interfaces.ConfirmationFailed
		record.FailureReason = fmt.Sprintf("ledger unreachable: %v", err)
		tr.update(record)
		return
	}

	depth := tr.policy.depthFor(anchor.ChainID)
	graceDeadline := time.Now().Add(tr.policy.NotFoundGrace)
	nudge := tr.nudges[anchor.ChainID]

	ticker := time.NewTicker(tr.policy.PollInterval)
	defer ticker.Stop()

	for {
		metrics.IncLedgerPoll(anchor.ChainID)
		status, err := client.TransactionStatus(ctx, anchor.TransactionRef)
		switch {
		case err != nil && interfaces.IsTransient(err):
			metrics.IncLedgerError(anchor.ChainID)
			tr.log.Warn("ledger query failed", "chain", anchor.ChainID, "tx", anchor.TransactionRef, "err", err)

		case err != nil:
			metrics.IncLedgerError(anchor.ChainID)
			tr.log.Error("anchor cannot be tracked", "chain", anchor.ChainID, "tx", anchor.TransactionRef, "err", err)
			record.Status = interfaces.ConfirmationFailed
			record.FailureReason = err.Error()
			tr.update(record)
			return

		case !status.Found:
			if time.Now().After(graceDeadline) {
				record.Status = interfaces.ConfirmationFailed
				record.FailureReason = "transaction not found"
				tr.update(record)
				return
			}

		case status.Reverted:
			record.BlockHeight = status.BlockHeight
			record.ConfirmationCount = status.ConfirmationCount
			record.Status = interfaces.ConfirmationFailed
			record.FailureReason = "transaction reverted"
			tr.update(record)
			return

		default:
			graceDeadline = time.Now().Add(tr.policy.NotFoundGrace)
			record.BlockHeight = status.BlockHeight
			record.ConfirmationCount = status.ConfirmationCount
			if status.ConfirmationCount >= depth {
				record.Status = interfaces.ConfirmationConfirmed
				tr.update(record)
				return
			}
			record.Status = interfaces.ConfirmationPending
			if !tr.update(record) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-tr.done:
			return
		case <-ticker.C:
		case <-nudge:
		}
	}
}
