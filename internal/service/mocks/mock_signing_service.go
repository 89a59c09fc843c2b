package mocks

import (
	"context"

	"contractapi/internal/model"
	"contractapi/internal/service"
	"contractapi/internal/verification"
	"github.com/stretchr/testify/mock"
)

type MockSigningService struct {
	mock.Mock
}

func view(args mock.Arguments) (*service.SigningView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SigningView), args.Error(1)
}

func (m *MockSigningService) ResolveShortCode(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *MockSigningService) View(ctx context.Context, vc verification.Context) (*service.SigningView, error) {
	return view(m.Called(ctx, vc))
}

func (m *MockSigningService) Verify(ctx context.Context, vc verification.Context, code string) (*service.SigningView, error) {
	return view(m.Called(ctx, vc, code))
}

func (m *MockSigningService) VerifyInPerson(ctx context.Context, actor service.Actor, vc verification.Context) (*service.SigningView, error) {
	return view(m.Called(ctx, actor, vc))
}

func (m *MockSigningService) Submit(ctx context.Context, vc verification.Context, in service.SubmitInput) (*model.Contract, error) {
	return contract(m.Called(ctx, vc, in))
}

func (m *MockSigningService) DocumentURL(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}
