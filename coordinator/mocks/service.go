package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) AcceptUpload(ctx context.Context, u upload.ClientUpload, weights aggregate.Weights) (upload.ClientUpload, error) {
	args := m.Called(ctx, u, weights)
	return args.Get(0).(upload.ClientUpload), args.Error(1)
}

func (m *MockService) ListUploads(ctx context.Context, offset, limit uint64) (upload.UploadPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(upload.UploadPage), args.Error(1)
}

func (m *MockService) RunRound(ctx context.Context, evaluate bool) (coordinator.RoundResult, error) {
	args := m.Called(ctx, evaluate)
	return args.Get(0).(coordinator.RoundResult), args.Error(1)
}

func (m *MockService) GetVersion(ctx context.Context, versionID uint64) (version.ModelVersion, error) {
	args := m.Called(ctx, versionID)
	return args.Get(0).(version.ModelVersion), args.Error(1)
}

func (m *MockService) CurrentVersion(ctx context.Context) (version.ModelVersion, error) {
	args := m.Called(ctx)
	return args.Get(0).(version.ModelVersion), args.Error(1)
}

func (m *MockService) ListVersions(ctx context.Context, offset, limit uint64) (version.VersionPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(version.VersionPage), args.Error(1)
}

func (m *MockService) GetRewards(ctx context.Context, versionID uint64) (reward.Record, error) {
	args := m.Called(ctx, versionID)
	return args.Get(0).(reward.Record), args.Error(1)
}

func (m *MockService) RegisterDataset(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockService) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
