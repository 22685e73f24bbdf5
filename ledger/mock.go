package ledger

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// MockLedger mocks the Ledger interface
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ChainID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockLedger) TransactionStatus(ctx context.Context, txRef string) (interfaces.TransactionStatus, error) {
	args := m.Called(ctx, txRef)
	return args.Get(0).(interfaces.TransactionStatus), args.Error(1)
}

func (m *MockLedger) Close() {
	m.Called()
}

// MockLedgerDialer mocks the LedgerDialer interface
type MockLedgerDialer struct {
	mock.Mock
}

func (m *MockLedgerDialer) Dial(ctx context.Context, chainID string) (interfaces.Ledger, error) {
	args := m.Called(ctx, chainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.Ledger), args.Error(1)
}
