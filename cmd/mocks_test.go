// File: cmd/mocks_test.go
package cmd

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/voidmaw/wayfarer/api/schemas"
)

type MockEngine struct {
	mock.Mock
}

var _ engineRunner = (*MockEngine)(nil)

func (m *MockEngine) PerformWebGoal(ctx context.Context, goal string) (string, error) {
	args := m.Called(ctx, goal)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) APISearch(ctx context.Context, query string) ([]schemas.MemoryRecord, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.MemoryRecord), args.Error(1)
}

func (m *MockEngine) GenerateCodeForTask(ctx context.Context, task string) (string, error) {
	args := m.Called(ctx, task)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) Close() {
	m.Called()
}

type MockRecentLister struct {
	mock.Mock
}

var _ recentLister = (*MockRecentLister)(nil)

func (m *MockRecentLister) RecentAPIRequests(ctx context.Context, limit int) ([]schemas.APIInteraction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.APIInteraction), args.Error(1)
}
