// Package sqlite stores the example catalog in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
)

// Ensure ExampleRepo implements repository.ExampleRepository.
var _ repository.ExampleRepository = (*ExampleRepo)(nil)

// ExampleRepo is the SQLite-backed example catalog.
type ExampleRepo struct {
	conn *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*ExampleRepo, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	r := &ExampleRepo{conn: conn}
	if err := r.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return r, nil
}

func (r *ExampleRepo) migrate(ctx context.Context) error {
	_, err := r.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS examples (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			difficulty  TEXT NOT NULL,
			category    TEXT NOT NULL,
			code        TEXT NOT NULL,
			position    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_examples_position ON examples(position);
	`)
	if err != nil {
		return fmt.Errorf("creating examples table: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *ExampleRepo) Close() error {
	return r.conn.Close()
}

func (r *ExampleRepo) List(ctx context.Context) ([]domain.Example, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, title, description, difficulty, category, code, position
		FROM examples
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list examples: %w", err)
	}
	defer rows.Close()

	examples := []domain.Example{}
	for rows.Next() {
		var ex domain.Example
		if err := rows.Scan(&ex.ID, &ex.Title, &ex.Description, &ex.Difficulty, &ex.Category, &ex.Code, &ex.Position); err != nil {
			return nil, fmt.Errorf("sqlite: scan example: %w", err)
		}
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list examples: %w", err)
	}
	return examples, nil
}

func (r *ExampleRepo) GetByID(ctx context.Context, id string) (*domain.Example, error) {
	ex := &domain.Example{}
	err := r.conn.QueryRowContext(ctx, `
		SELECT id, title, description, difficulty, category, code, position
		FROM examples
		WHERE id = ?`, id).
		Scan(&ex.ID, &ex.Title, &ex.Description, &ex.Difficulty, &ex.Category, &ex.Code, &ex.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrExampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get example: %w", err)
	}
	return ex, nil
}

// Seed upserts every example in one transaction.
func (r *ExampleRepo) Seed(ctx context.Context, examples []domain.Example) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO examples (id, title, description, difficulty, category, code, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			difficulty = excluded.difficulty,
			category = excluded.category,
			code = excluded.code,
			position = excluded.position`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, ex := range examples {
		if _, err := stmt.ExecContext(ctx, ex.ID, ex.Title, ex.Description, string(ex.Difficulty), ex.Category, ex.Code, ex.Position); err != nil {
			return fmt.Errorf("sqlite: seed example %s: %w", ex.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit seed: %w", err)
	}
	return nil
}

func (r *ExampleRepo) Ping(ctx context.Context) error {
	return r.conn.PingContext(ctx)
}
