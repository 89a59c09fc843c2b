package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"contractapi/internal/model"
)

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, e *model.AuditEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}
