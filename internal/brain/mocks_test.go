// File: internal/brain/mocks_test.go
package brain

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/voidmaw/wayfarer/internal/inference"
)

// MockClient is a mock implementation of inference.Client.
type MockClient struct {
	mock.Mock
}

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
