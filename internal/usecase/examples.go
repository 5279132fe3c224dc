package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
)

// ExamplesUsecase serves the read-only catalog of sample programs.
type ExamplesUsecase struct {
	repo   repository.ExampleRepository
	logger *zap.Logger
}

// NewExamplesUsecase creates a new ExamplesUsecase.
func NewExamplesUsecase(repo repository.ExampleRepository, logger *zap.Logger) *ExamplesUsecase {
	return &ExamplesUsecase{repo: repo, logger: logger}
}

// ExampleFilter narrows List results. Empty fields match everything.
type ExampleFilter struct {
	Category   string
	Difficulty domain.Difficulty
}

// List returns catalog entries matching f, in catalog order.
func (uc *ExamplesUsecase) List(ctx context.Context, f ExampleFilter) ([]domain.Example, error) {
	all, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list examples: %w", err)
	}

	out := make([]domain.Example, 0, len(all))
	for _, ex := range all {
		if f.Category != "" && !strings.EqualFold(ex.Category, f.Category) {
			continue
		}
		if f.Difficulty != "" && !strings.EqualFold(string(ex.Difficulty), string(f.Difficulty)) {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

// Get returns one example or domain.ErrExampleNotFound.
func (uc *ExamplesUsecase) Get(ctx context.Context, id string) (*domain.Example, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrExampleNotFound
	}
	ex, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrExampleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get example: %w", err)
	}
	return ex, nil
}

// Seed loads the given examples into the store.
func (uc *ExamplesUsecase) Seed(ctx context.Context, examples []domain.Example) error {
	if err := uc.repo.Seed(ctx, examples); err != nil {
		return fmt.Errorf("seed examples: %w", err)
	}
	uc.logger.Info("Example catalog seeded", zap.Int("count", len(examples)))
	return nil
}
