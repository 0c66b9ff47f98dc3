package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// Session problem state

func (c *DatabaseClient) GetProblemState(ctx context.Context, sessionID string) (*models.SessionProblemState, error) {
	const q = `
		SELECT session_id, category_id, cause_id, confidence, source, manual_override, updated_at
		FROM session_problem_states WHERE session_id = $1
	`
	var (
		st       models.SessionProblemState
		category sql.NullString
		cause    sql.NullString
	)
	err := c.db.QueryRowContext(ctx, q, sessionID).Scan(
		&st.SessionID, &category, &cause, &st.Confidence, &st.Source, &st.ManualOverride, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: problem state for session %s", core.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	st.CategoryID = category.String
	st.CauseID = cause.String
	return &st, nil
}

func (c *DatabaseClient) UpsertProblemState(ctx context.Context, state *models.SessionProblemState) error {
	if state == nil {
		return errors.New("nil problem state")
	}
	const q = `
		INSERT INTO session_problem_states (session_id, category_id, cause_id, confidence, source, manual_override, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, now())
		ON CONFLICT (session_id) DO UPDATE
		SET category_id = EXCLUDED.category_id, cause_id = EXCLUDED.cause_id,
		    confidence = EXCLUDED.confidence, source = EXCLUDED.source,
		    manual_override = EXCLUDED.manual_override, updated_at = now()
	`
	_, err := c.db.ExecContext(ctx, q,
		state.SessionID, state.CategoryID, state.CauseID, state.Confidence, state.Source, state.ManualOverride,
	)
	return err
}

// Suggestion ledger

func (c *DatabaseClient) InsertSuggestion(ctx context.Context, s *models.SessionSuggestion) (bool, error) {
	if s == nil {
		return false, errors.New("nil suggestion")
	}
	// The unique (session_id, solution_id) constraint resolves duplicate
	// races to a single row; losers are no-ops, not errors.
	const q = `
		INSERT INTO session_suggestions (id, session_id, solution_id, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, solution_id) DO NOTHING
	`
	res, err := c.db.ExecContext(ctx, q, s.ID, s.SessionID, s.SolutionID, s.Status, s.Notes)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *DatabaseClient) ListSuggestionsBySession(ctx context.Context, sessionID string) ([]models.SessionSuggestion, error) {
	const q = `
		SELECT id, session_id, solution_id, status, notes, created_at, updated_at
		FROM session_suggestions
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SessionSuggestion
	for rows.Next() {
		var s models.SessionSuggestion
		if err := rows.Scan(&s.ID, &s.SessionID, &s.SolutionID, &s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus, notes string) error {
	const q = `
		UPDATE session_suggestions
		SET status = $2, notes = COALESCE(NULLIF($3, ''), notes), updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, notes)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: suggestion %s", core.ErrNotFound, id)
	}
	return nil
}

// Usage ledger

func (c *DatabaseClient) InsertUsageEntry(ctx context.Context, entry *models.UsageLedgerEntry) error {
	if entry == nil {
		return errors.New("nil usage entry")
	}
	const q = `
		INSERT INTO usage_ledger
			(id, session_id, message_id, request_type, model, input_tokens, output_tokens, total_tokens,
			 cost_input, cost_output, cost_total, pricing_model)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := c.db.ExecContext(ctx, q,
		entry.ID, entry.SessionID, entry.MessageID, entry.RequestType, entry.Model,
		entry.InputTokens, entry.OutputTokens, entry.TotalTokens,
		entry.CostInput, entry.CostOutput, entry.CostTotal, entry.PricingModel,
	)
	return err
}

func (c *DatabaseClient) UsageTotals(ctx context.Context) (*core.UsageAggregate, error) {
	const q = `
		SELECT COUNT(id), COUNT(DISTINCT session_id),
		       COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_input), 0), COALESCE(SUM(cost_output), 0), COALESCE(SUM(cost_total), 0)
		FROM usage_ledger
	`
	var agg core.UsageAggregate
	err := c.db.QueryRowContext(ctx, q).Scan(
		&agg.Records, &agg.Sessions,
		&agg.InputTokens, &agg.OutputTokens, &agg.TotalTokens,
		&agg.CostInput, &agg.CostOutput, &agg.CostTotal,
	)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (c *DatabaseClient) UsageBySession(ctx context.Context) ([]core.UsageAggregate, error) {
	const q = `
		SELECT session_id, COUNT(id),
		       COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_input), 0), COALESCE(SUM(cost_output), 0), COALESCE(SUM(cost_total), 0)
		FROM usage_ledger
		GROUP BY session_id
		ORDER BY SUM(total_tokens) DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.UsageAggregate
	for rows.Next() {
		var agg core.UsageAggregate
		if err := rows.Scan(&agg.SessionID, &agg.Records,
			&agg.InputTokens, &agg.OutputTokens, &agg.TotalTokens,
			&agg.CostInput, &agg.CostOutput, &agg.CostTotal); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// Knowledge cases

func (c *DatabaseClient) InsertKnowledgeCase(ctx context.Context, kc *models.KnowledgeCase) error {
	if kc == nil {
		return errors.New("nil knowledge case")
	}
	const q = `
		INSERT INTO knowledge_cases (id, session_id, summary, embedding)
		VALUES ($1, $2, $3, $4)
	`
	_, err := c.db.ExecContext(ctx, q, kc.ID, kc.SessionID, kc.Summary, pgvector.NewVector(kc.Embedding))
	return err
}

func (c *DatabaseClient) SearchKnowledgeCases(ctx context.Context, queryVec []float32, limit int) ([]models.KnowledgeCase, error) {
	const q = `
		SELECT id, session_id, summary, embedding, created_at
		FROM knowledge_cases
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KnowledgeCase
	for rows.Next() {
		var (
			kc  models.KnowledgeCase
			emb pgvector.Vector
		)
		if err := rows.Scan(&kc.ID, &kc.SessionID, &kc.Summary, &emb, &kc.CreatedAt); err != nil {
			return nil, err
		}
		kc.Embedding = emb.Slice()
		out = append(out, kc)
	}
	return out, rows.Err()
}
