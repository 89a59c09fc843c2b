package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"contractapi/internal/model"
	"contractapi/internal/repository"
)

type MockContractRepository struct {
	mock.Mock
}

func (m *MockContractRepository) contract(args mock.Arguments) (*model.Contract, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contract), args.Error(1)
}

func (m *MockContractRepository) Create(ctx context.Context, c *model.Contract) (*model.Contract, error) {
	args := m.Called(ctx, c)
	if fn, ok := args.Get(0).(func(context.Context, *model.Contract) *model.Contract); ok {
		return fn(ctx, c), args.Error(1)
	}
	return m.contract(args)
}

func (m *MockContractRepository) FindByID(ctx context.Context, id string) (*model.Contract, error) {
	return m.contract(m.Called(ctx, id))
}

func (m *MockContractRepository) FindByToken(ctx context.Context, token string) (*model.Contract, error) {
	return m.contract(m.Called(ctx, token))
}

func (m *MockContractRepository) FindByShortCode(ctx context.Context, code string) (*model.Contract, error) {
	return m.contract(m.Called(ctx, code))
}

func (m *MockContractRepository) List(ctx context.Context, f repository.ContractFilter) (*repository.PageResult[model.Contract], error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Contract]), args.Error(1)
}

func (m *MockContractRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockContractRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockContractRepository) UpdateVariableValues(ctx context.Context, id string, expected model.ContractStatus, values map[string]any) (*model.Contract, error) {
	return m.contract(m.Called(ctx, id, expected, values))
}

func (m *MockContractRepository) UpdateStatus(ctx context.Context, id string, from, to model.ContractStatus, patch repository.StatusPatch) (*model.Contract, error) {
	return m.contract(m.Called(ctx, id, from, to, patch))
}

func (m *MockContractRepository) AttachSignatureArtifact(ctx context.Context, id, artifactID string, values map[string]any, signatureImage string, signedAt time.Time) (*model.Contract, error) {
	return m.contract(m.Called(ctx, id, artifactID, values, signatureImage, signedAt))
}
