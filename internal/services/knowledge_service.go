package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

const similarCaseLimit = 3

// KnowledgeService keeps a searchable memory of resolved sessions. A
// resolved session's summary is embedded and stored; later sessions with a
// similar problem surface those summaries to the reply model. All of it is
// best effort and never fails a turn.
type KnowledgeService struct {
	db       core.DbClient
	embedder core.EmbeddingClient
	logger   *zap.Logger
}

func NewKnowledgeService(db core.DbClient, embedder core.EmbeddingClient, logger *zap.Logger) *KnowledgeService {
	return &KnowledgeService{db: db, embedder: embedder, logger: logger}
}

// RecordResolution stores the embedded summary of a resolved session.
func (s *KnowledgeService) RecordResolution(ctx context.Context, sessionID, summary string) {
	if summary == "" {
		return
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{summary})
	if err != nil || len(vecs) == 0 {
		s.logger.Warn("resolution summary not embedded", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	kc := &models.KnowledgeCase{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Summary:   summary,
		Embedding: vecs[0],
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.InsertKnowledgeCase(ctx, kc); err != nil {
		s.logger.Warn("knowledge case not saved", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// SimilarSummaries returns summaries of past resolutions that look like
// the current decision's problem.
func (s *KnowledgeService) SimilarSummaries(ctx context.Context, d *models.Decision) []string {
	query := resolutionSummary(d)
	if query == "" {
		return nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		s.logger.Warn("similarity query not embedded", zap.Error(err))
		return nil
	}

	cases, err := s.db.SearchKnowledgeCases(ctx, vecs[0], similarCaseLimit)
	if err != nil {
		s.logger.Warn("knowledge search failed", zap.Error(err))
		return nil
	}

	out := make([]string, 0, len(cases))
	for _, kc := range cases {
		out = append(out, kc.Summary)
	}
	return out
}

func resolutionSummary(d *models.Decision) string {
	if d == nil || d.CategoryName == "" {
		return ""
	}
	s := "Problem: " + d.CategoryName
	if d.CauseName != "" {
		s += ". Cause: " + d.CauseName
	}
	if d.SolutionTitle != "" {
		s = fmt.Sprintf("%s. Fixed by: %s", s, d.SolutionTitle)
	}
	return s
}
