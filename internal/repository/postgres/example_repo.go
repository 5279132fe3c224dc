package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
)

// Ensure pgExampleRepo implements repository.ExampleRepository.
var _ repository.ExampleRepository = (*pgExampleRepo)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS examples (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		difficulty  TEXT NOT NULL,
		category    TEXT NOT NULL,
		code        TEXT NOT NULL,
		position    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_examples_position ON examples (position)`

type pgExampleRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresExampleRepository creates a new PostgreSQL-backed example catalog.
func NewPostgresExampleRepository(pool *pgxpool.Pool) repository.ExampleRepository {
	return &pgExampleRepo{pool: pool}
}

// Migrate creates the examples table when it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *pgExampleRepo) List(ctx context.Context) ([]domain.Example, error) {
	query := `
		SELECT id, title, description, difficulty, category, code, position
		FROM examples
		ORDER BY position, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list examples: %w", err)
	}
	examples, err := pgx.CollectRows(rows, scanExample)
	if err != nil {
		return nil, fmt.Errorf("postgres: list examples: %w", err)
	}
	if examples == nil {
		examples = []domain.Example{}
	}
	return examples, nil
}

func (r *pgExampleRepo) GetByID(ctx context.Context, id string) (*domain.Example, error) {
	query := `
		SELECT id, title, description, difficulty, category, code, position
		FROM examples
		WHERE id = $1`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: get example: %w", err)
	}
	ex, err := pgx.CollectExactlyOneRow(rows, scanExample)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrExampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get example: %w", err)
	}
	return &ex, nil
}

// Seed upserts every example in a single batch.
func (r *pgExampleRepo) Seed(ctx context.Context, examples []domain.Example) error {
	query := `
		INSERT INTO examples (id, title, description, difficulty, category, code, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			difficulty = EXCLUDED.difficulty,
			category = EXCLUDED.category,
			code = EXCLUDED.code,
			position = EXCLUDED.position`

	batch := &pgx.Batch{}
	for _, ex := range examples {
		batch.Queue(query, ex.ID, ex.Title, ex.Description, string(ex.Difficulty), ex.Category, ex.Code, ex.Position)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: seed examples: %w", err)
	}
	return nil
}

func (r *pgExampleRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanExample(row pgx.CollectableRow) (domain.Example, error) {
	var ex domain.Example
	err := row.Scan(&ex.ID, &ex.Title, &ex.Description, &ex.Difficulty, &ex.Category, &ex.Code, &ex.Position)
	return ex, err
}
