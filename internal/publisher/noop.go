package publisher

import (
	"context"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
)

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

// NewNoop returns a publisher that does nothing.
func NewNoop() Publisher { return Noop{} }

func (Noop) Publish(context.Context, *domain.ExecutionEvent) error { return nil }

func (Noop) Close() error { return nil }
