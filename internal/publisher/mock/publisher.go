package mock

import (
	"context"
	"sync"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock event publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.ExecutionEvent
	PublishFn func(ctx context.Context, event *domain.ExecutionEvent) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.ExecutionEvent) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, event)
	return nil
}

// Events returns a snapshot of the published events.
func (m *MockPublisher) Events() []*domain.ExecutionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ExecutionEvent(nil), m.Published...)
}

func (m *MockPublisher) Close() error {
	return nil
}
