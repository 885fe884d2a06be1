// File: internal/orchestrator/mocks_test.go
package orchestrator

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/inference"
)

type MockClient struct {
	mock.Mock
}

var _ inference.Client = (*MockClient)(nil)

func (m *MockClient) Generate(ctx context.Context, req inference.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float64, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockPlanner struct {
	mock.Mock
}

var _ Planner = (*MockPlanner)(nil)

func (m *MockPlanner) CreateDetailedPlan(ctx context.Context, goal, currentURL, pageContent string, history []schemas.APIInteraction) (string, error) {
	args := m.Called(ctx, goal, currentURL, pageContent, history)
	return args.String(0), args.Error(1)
}

type MockNavigator struct {
	mock.Mock
}

var _ Navigator = (*MockNavigator)(nil)

func (m *MockNavigator) CurrentURL() string {
	return m.Called().String(0)
}

func (m *MockNavigator) PageContent() string {
	return m.Called().String(0)
}

func (m *MockNavigator) CapturedAPIs() []schemas.APIInteraction {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]schemas.APIInteraction)
}

func (m *MockNavigator) NavigateAndLearn(ctx context.Context, goal, plan string) error {
	return m.Called(ctx, goal, plan).Error(0)
}

func (m *MockNavigator) CloseBrowser() error {
	return m.Called().Error(0)
}

type MockCodeGenerator struct {
	mock.Mock
}

var _ CodeGenerator = (*MockCodeGenerator)(nil)

func (m *MockCodeGenerator) GenerateCode(ctx context.Context, task string) (string, error) {
	args := m.Called(ctx, task)
	return args.String(0), args.Error(1)
}

type MockMemory struct {
	mock.Mock
}

var _ Memory = (*MockMemory)(nil)

func (m *MockMemory) Search(ctx context.Context, query string, topK int) ([]schemas.MemoryRecord, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.MemoryRecord), args.Error(1)
}
