package mocks

import (
	"context"

	"contractapi/internal/model"
	"contractapi/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockContractService struct {
	mock.Mock
}

func issued(args mock.Arguments) (*service.IssuedContract, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuedContract), args.Error(1)
}

func contract(args mock.Arguments) (*model.Contract, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contract), args.Error(1)
}

func (m *MockContractService) ListTemplates(ctx context.Context) ([]model.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Template), args.Error(1)
}

func (m *MockContractService) Create(ctx context.Context, actor service.Actor, in service.CreateContractInput) (*service.IssuedContract, error) {
	return issued(m.Called(ctx, actor, in))
}

func (m *MockContractService) Get(ctx context.Context, id string) (*model.Contract, error) {
	return contract(m.Called(ctx, id))
}

func (m *MockContractService) List(ctx context.Context, f service.ContractListFilter) (*service.ContractListResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ContractListResult), args.Error(1)
}

func (m *MockContractService) Issue(ctx context.Context, actor service.Actor, id string) (*service.IssuedContract, error) {
	return issued(m.Called(ctx, actor, id))
}

func (m *MockContractService) Approve(ctx context.Context, actor service.Actor, id string) (*service.IssuedContract, error) {
	return issued(m.Called(ctx, actor, id))
}

func (m *MockContractService) Reject(ctx context.Context, actor service.Actor, id, reason string) (*model.Contract, error) {
	return contract(m.Called(ctx, actor, id, reason))
}

func (m *MockContractService) Resubmit(ctx context.Context, actor service.Actor, id string, values map[string]any) (*model.Contract, error) {
	return contract(m.Called(ctx, actor, id, values))
}

func (m *MockContractService) UpdateFields(ctx context.Context, actor service.Actor, id string, values map[string]any) (*model.Contract, error) {
	return contract(m.Called(ctx, actor, id, values))
}

func (m *MockContractService) Cancel(ctx context.Context, actor service.Actor, id string) (*model.Contract, error) {
	return contract(m.Called(ctx, actor, id))
}

func (m *MockContractService) Preview(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}
