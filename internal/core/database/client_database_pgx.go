package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tobiadeyemi/Resolva/internal/config"
	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Sessions

func (c *DatabaseClient) CreateSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("nil session")
	}
	const q = `
		INSERT INTO sessions (id, status, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, now()), COALESCE($4, now()))
	`
	_, err := c.db.ExecContext(ctx, q, session.ID, session.Status, session.CreatedAt, session.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetSessionByID(ctx context.Context, id string) (*models.Session, error) {
	const q = `
		SELECT id, status, created_at, updated_at, ended_at, feedback_rating, feedback_text
		FROM sessions WHERE id = $1
	`
	var s models.Session
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.EndedAt, &s.FeedbackRating, &s.FeedbackText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) ListSessions(ctx context.Context, limit, offset int) ([]models.Session, error) {
	const q = `
		SELECT id, status, created_at, updated_at, ended_at, feedback_rating, feedback_text
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := c.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt, &s.EndedAt, &s.FeedbackRating, &s.FeedbackText); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) TouchSession(ctx context.Context, id string) error {
	const q = `UPDATE sessions SET updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", core.ErrNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) CloseSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time) (bool, error) {
	const q = `
		UPDATE sessions
		SET status = $2, ended_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'in_progress'
	`
	res, err := c.db.ExecContext(ctx, q, id, status, endedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *DatabaseClient) SetSessionFeedback(ctx context.Context, id string, rating int, comment string) error {
	const q = `
		UPDATE sessions
		SET feedback_rating = $2, feedback_text = NULLIF($3, ''), updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, rating, comment)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", core.ErrNotFound, id)
	}
	return nil
}

// Messages

func (c *DatabaseClient) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING seq, created_at
	`
	return c.db.QueryRowContext(ctx, q,
		msg.ID, msg.SessionID, msg.Role, msg.Content, meta, msg.CreatedAt,
	).Scan(&msg.Seq, &msg.CreatedAt)
}

func (c *DatabaseClient) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	const q = `
		SELECT id, session_id, role, content, metadata, created_at, seq, helpful
		FROM messages WHERE id = $1
	`
	m, err := scanMessage(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (c *DatabaseClient) ListMessagesBySession(ctx context.Context, sessionID string, limit, offset int) ([]models.Message, error) {
	const q = `
		SELECT id, session_id, role, content, metadata, created_at, seq, helpful
		FROM messages
		WHERE session_id = $1
		ORDER BY seq ASC
		LIMIT NULLIF($2, 0) OFFSET $3
	`
	if limit < 0 {
		limit = 0
	}
	rows, err := c.db.QueryContext(ctx, q, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateMessageMetadata(ctx context.Context, id string, meta models.MessageMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `UPDATE messages SET metadata = $2 WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, raw)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: message %s", core.ErrNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) SetMessageHelpful(ctx context.Context, id string, helpful bool) error {
	const q = `UPDATE messages SET helpful = $2 WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, helpful)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: message %s", core.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m   models.Message
		raw []byte
	)
	if err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &raw, &m.CreatedAt, &m.Seq, &m.Helpful); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}

// Image observations

func (c *DatabaseClient) CreateImageObservation(ctx context.Context, obs *models.ImageObservation) error {
	if obs == nil {
		return errors.New("nil image observation")
	}
	details, err := json.Marshal(obs.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	const q = `
		INSERT INTO image_observations
			(id, session_id, message_id, storage_uri, mime_type, description, confidence, label, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
		RETURNING seq, created_at
	`
	return c.db.QueryRowContext(ctx, q,
		obs.ID, obs.SessionID, obs.MessageID, obs.StorageURI, obs.MimeType,
		obs.Description, obs.Confidence, obs.Label, details, obs.CreatedAt,
	).Scan(&obs.Seq, &obs.CreatedAt)
}

func (c *DatabaseClient) FillImageAnalysis(ctx context.Context, id, description string, confidence float64, label string, details []string) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	// Analysis is written once; rows with an existing description are left alone.
	const q = `
		UPDATE image_observations
		SET description = $2, confidence = $3, label = $4, details = $5
		WHERE id = $1 AND description = ''
	`
	_, err = c.db.ExecContext(ctx, q, id, description, confidence, label, raw)
	return err
}

func (c *DatabaseClient) ListImagesBySession(ctx context.Context, sessionID string) ([]models.ImageObservation, error) {
	const q = `
		SELECT id, session_id, message_id, storage_uri, mime_type, description, confidence, label, details, created_at, seq
		FROM image_observations
		WHERE session_id = $1
		ORDER BY seq ASC
	`
	rows, err := c.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ImageObservation
	for rows.Next() {
		var (
			o   models.ImageObservation
			raw []byte
		)
		if err := rows.Scan(&o.ID, &o.SessionID, &o.MessageID, &o.StorageURI, &o.MimeType,
			&o.Description, &o.Confidence, &o.Label, &raw, &o.CreatedAt, &o.Seq); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &o.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
