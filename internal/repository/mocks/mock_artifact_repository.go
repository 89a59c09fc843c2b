package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"contractapi/internal/model"
)

type MockArtifactRepository struct {
	mock.Mock
}

func (m *MockArtifactRepository) Create(ctx context.Context, a *model.Artifact) (*model.Artifact, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) FindByID(ctx context.Context, id string) (*model.Artifact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
