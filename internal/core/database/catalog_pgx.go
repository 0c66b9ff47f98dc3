package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// Catalog reads

func (c *DatabaseClient) ListCategories(ctx context.Context) ([]models.ProblemCategory, error) {
	const q = `SELECT id, slug, name, description FROM problem_categories ORDER BY slug`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProblemCategory
	for rows.Next() {
		var cat models.ProblemCategory
		if err := rows.Scan(&cat.ID, &cat.Slug, &cat.Name, &cat.Description); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) GetCategoryBySlug(ctx context.Context, slug string) (*models.ProblemCategory, error) {
	const q = `SELECT id, slug, name, description FROM problem_categories WHERE slug = $1`
	var cat models.ProblemCategory
	err := c.db.QueryRowContext(ctx, q, slug).Scan(&cat.ID, &cat.Slug, &cat.Name, &cat.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", core.ErrNotFound, slug)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *DatabaseClient) ListCausesByCategory(ctx context.Context, categoryID string) ([]models.ProblemCause, error) {
	const q = `
		SELECT id, category_id, slug, name, description, priority
		FROM problem_causes
		WHERE category_id = $1
		ORDER BY priority ASC, slug ASC
	`
	rows, err := c.db.QueryContext(ctx, q, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProblemCause
	for rows.Next() {
		var cause models.ProblemCause
		if err := rows.Scan(&cause.ID, &cause.CategoryID, &cause.Slug, &cause.Name, &cause.Description, &cause.Priority); err != nil {
			return nil, err
		}
		out = append(out, cause)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListSolutionsByCause(ctx context.Context, causeID string) ([]models.ProblemSolution, error) {
	const q = `
		SELECT id, cause_id, slug, title, summary, instructions, step_order, requires_escalation
		FROM problem_solutions
		WHERE cause_id = $1
		ORDER BY step_order ASC
	`
	rows, err := c.db.QueryContext(ctx, q, causeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSolutions(rows)
}

func (c *DatabaseClient) GetSolutionBySlug(ctx context.Context, slug string) (*models.ProblemSolution, error) {
	const q = `
		SELECT id, cause_id, slug, title, summary, instructions, step_order, requires_escalation
		FROM problem_solutions WHERE slug = $1
	`
	var s models.ProblemSolution
	err := c.db.QueryRowContext(ctx, q, slug).Scan(
		&s.ID, &s.CauseID, &s.Slug, &s.Title, &s.Summary, &s.Instructions, &s.StepOrder, &s.RequiresEscalation,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: solution %s", core.ErrNotFound, slug)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) ListSolutionsByIDs(ctx context.Context, ids []string) ([]models.ProblemSolution, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := fmt.Sprintf(`
		SELECT id, cause_id, slug, title, summary, instructions, step_order, requires_escalation
		FROM problem_solutions
		WHERE id IN (%s)
		ORDER BY step_order ASC
	`, strings.Join(placeholders, ", "))

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSolutions(rows)
}

func collectSolutions(rows *sql.Rows) ([]models.ProblemSolution, error) {
	var out []models.ProblemSolution
	for rows.Next() {
		var s models.ProblemSolution
		if err := rows.Scan(&s.ID, &s.CauseID, &s.Slug, &s.Title, &s.Summary, &s.Instructions, &s.StepOrder, &s.RequiresEscalation); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Catalog import upserts. Slugs are the stable identity; ids are kept on
// conflict so session state keeps pointing at the same rows.

func (c *DatabaseClient) UpsertCategory(ctx context.Context, cat *models.ProblemCategory) (bool, error) {
	if cat == nil {
		return false, errors.New("nil category")
	}
	const q = `
		INSERT INTO problem_categories (id, slug, name, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		RETURNING id, (xmax = 0)
	`
	var created bool
	err := c.db.QueryRowContext(ctx, q, cat.ID, cat.Slug, cat.Name, cat.Description).Scan(&cat.ID, &created)
	return created, err
}

func (c *DatabaseClient) UpsertCause(ctx context.Context, cause *models.ProblemCause) (bool, error) {
	if cause == nil {
		return false, errors.New("nil cause")
	}
	const q = `
		INSERT INTO problem_causes (id, category_id, slug, name, description, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category_id, slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, priority = EXCLUDED.priority
		RETURNING id, (xmax = 0)
	`
	var created bool
	err := c.db.QueryRowContext(ctx, q,
		cause.ID, cause.CategoryID, cause.Slug, cause.Name, cause.Description, cause.Priority,
	).Scan(&cause.ID, &created)
	return created, err
}

func (c *DatabaseClient) UpsertSolution(ctx context.Context, sol *models.ProblemSolution) (bool, error) {
	if sol == nil {
		return false, errors.New("nil solution")
	}
	const q = `
		INSERT INTO problem_solutions (id, cause_id, slug, title, summary, instructions, step_order, requires_escalation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE
		SET cause_id = EXCLUDED.cause_id, title = EXCLUDED.title, summary = EXCLUDED.summary,
		    instructions = EXCLUDED.instructions, step_order = EXCLUDED.step_order,
		    requires_escalation = EXCLUDED.requires_escalation
		RETURNING id, (xmax = 0)
	`
	var created bool
	err := c.db.QueryRowContext(ctx, q,
		sol.ID, sol.CauseID, sol.Slug, sol.Title, sol.Summary, sol.Instructions, sol.StepOrder, sol.RequiresEscalation,
	).Scan(&sol.ID, &created)
	return created, err
}

func (c *DatabaseClient) DeleteSolutionsNotIn(ctx context.Context, causeID string, keepSlugs []string) (int, error) {
	args := []any{causeID}
	q := `DELETE FROM problem_solutions WHERE cause_id = $1`
	if len(keepSlugs) > 0 {
		placeholders := make([]string, len(keepSlugs))
		for i, slug := range keepSlugs {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, slug)
		}
		q += fmt.Sprintf(" AND slug NOT IN (%s)", strings.Join(placeholders, ", "))
	}
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
