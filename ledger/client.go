// Package ledger implements the per-chain ledger collaborators and the
// confirmation tracker that aggregates anchoring transactions into a quorum
// decision.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// DefaultQueryTimeout bounds a single RPC round trip.
const DefaultQueryTimeout = 10 * time.Second

// Client answers anchoring-transaction status queries for one chain over an
// Ethereum-compatible RPC endpoint.
type Client struct {
	chainID string
	ec      *ethclient.Client
	timeout time.Duration
	log     *slog.Logger
}

// DialClient connects to a chain's RPC endpoint.
func DialClient(ctx context.Context, chainID, rpcURL string, log *slog.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s at %s: %w", chainID, rpcURL, err)
	}

	return &Client{
		chainID: chainID,
		ec:      ec,
		timeout: DefaultQueryTimeout,
		log:     log,
	}, nil
}

// ChainID identifies the chain this client serves.
func (c *Client) ChainID() string {
	return c.chainID
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// TransactionStatus looks up an anchoring transaction and how deep it is
// buried. A transaction the chain does not know is reported with Found
// false; RPC failures are transient.
func (c *Client) TransactionStatus(ctx context.Context, txRef string) (interfaces.TransactionStatus, error) {
	txHash, err := ParseTxRef(txRef)
	if err != nil {
		return interfaces.TransactionStatus{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.ec.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return interfaces.TransactionStatus{}, nil
	}
	if err != nil {
		return interfaces.TransactionStatus{}, interfaces.Transient(fmt.Errorf("querying receipt on %s: %w", c.chainID, err))
	}

	head, err := c.ec.BlockNumber(ctx)
	if err != nil {
		return interfaces.TransactionStatus{}, interfaces.Transient(fmt.Errorf("querying head on %s: %w", c.chainID, err))
	}

	status := interfaces.TransactionStatus{
		Found:       true,
		Reverted:    receipt.Status == types.ReceiptStatusFailed,
		BlockHeight: receipt.BlockNumber.Uint64(),
	}
	status.ConfirmationCount = Confirmations(head, status.BlockHeight)

	return status, nil
}

// ParseTxRef parses a 32-byte hex transaction reference. A malformed
// reference is a terminal error, not a transient one: it can never confirm.
func ParseTxRef(txRef string) (common.Hash, error) {
	clean := strings.TrimPrefix(txRef, "0x")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid transaction ref %q: %w", txRef, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction ref %q: expected %d bytes, got %d", txRef, common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

// Confirmations counts how deep a transaction is buried, counting the
// including block itself. A head behind the inclusion height counts zero.
func Confirmations(head, inclusion uint64) uint64 {
	if head < inclusion {
		return 0
	}
	return head - inclusion + 1
}
