package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// MockFolderStore is a testify mock of jobs.FolderStore.
type MockFolderStore struct {
	mock.Mock
}

// EnsureFolders is the mock implementation of the EnsureFolders method.
func (m *MockFolderStore) EnsureFolders(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Save is the mock implementation of the Save method.
func (m *MockFolderStore) Save(ctx context.Context, record jobs.Record, source string, dest jobs.Destination) (string, error) {
	args := m.Called(ctx, record, source, dest)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// LoadAll is the mock implementation of the LoadAll method.
func (m *MockFolderStore) LoadAll(ctx context.Context, dest jobs.Destination) ([]any, error) {
	args := m.Called(ctx, dest)
	items, _ := args.Get(0).([]any)
	return items, args.Error(1) //nolint:wrapcheck
}
