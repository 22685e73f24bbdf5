package oracle

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

// MockOracleService mocks the OracleService interface
type MockOracleService struct {
	mock.Mock
}

// Submit mocks the Submit method
func (m *MockOracleService) Submit(ctx context.Context, documentID interfaces.DocumentID, locator interfaces.ContentLocator) (string, error) {
	args := m.Called(ctx, documentID, locator)
	return args.String(0), args.Error(1)
}

// Status mocks the Status method
func (m *MockOracleService) Status(ctx context.Context, requestID string) (interfaces.OracleStatus, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(interfaces.OracleStatus), args.Error(1)
}
