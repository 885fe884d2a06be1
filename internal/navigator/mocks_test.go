// File: internal/navigator/mocks_test.go
package navigator

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/voidmaw/wayfarer/api/schemas"
)

// MockBrowser is a mock implementation of Browser.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBrowser) Close() error {
	return m.Called().Error(0)
}

func (m *MockBrowser) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowser) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) PageText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockBrowser) Type(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *MockBrowser) Submit(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockBrowser) ScrollBy(ctx context.Context, pixels int) error {
	return m.Called(ctx, pixels).Error(0)
}

func (m *MockBrowser) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	return m.Called(ctx, quiet).Error(0)
}

func (m *MockBrowser) Interactions() []schemas.APIInteraction {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]schemas.APIInteraction)
}

// MockPlanner is a mock implementation of Planner.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) CreateErrorRecoveryPlan(ctx context.Context, goal, failedStep, errMsg, pageContent string) (string, error) {
	args := m.Called(ctx, goal, failedStep, errMsg, pageContent)
	return args.String(0), args.Error(1)
}

// MockCodeAssistant is a mock implementation of CodeAssistant.
type MockCodeAssistant struct {
	mock.Mock
}

func (m *MockCodeAssistant) GenerateAPIReplayCode(ctx context.Context, interaction *schemas.APIInteraction) (string, error) {
	args := m.Called(ctx, interaction)
	return args.String(0), args.Error(1)
}

// MockAnalyzer is a mock implementation of Analyzer.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeInteraction(ctx context.Context, interaction *schemas.APIInteraction) (string, error) {
	args := m.Called(ctx, interaction)
	return args.String(0), args.Error(1)
}

func (m *MockAnalyzer) DescribePage(ctx context.Context, pageURL, content string) (string, error) {
	args := m.Called(ctx, pageURL, content)
	return args.String(0), args.Error(1)
}

// MockMemory is a mock implementation of Memory.
type MockMemory struct {
	mock.Mock
}

func (m *MockMemory) Add(ctx context.Context, id, text string, metadata map[string]any) error {
	return m.Called(ctx, id, text, metadata).Error(0)
}
