package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/config"
	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// UsageService records one immutable ledger entry per external model call
// and prices it against the configured per-million-token rates.
type UsageService struct {
	db      core.DbClient
	pricing map[string]config.ModelRate
	logger  *zap.Logger
}

func NewUsageService(db core.DbClient, pricing map[string]config.ModelRate, logger *zap.Logger) *UsageService {
	return &UsageService{db: db, pricing: pricing, logger: logger}
}

// Record persists a priced ledger entry. A nil usage is ignored so callers
// can pass through whatever the collaborator returned. Accounting failures
// are logged, never surfaced: a turn must not fail because bookkeeping did.
func (s *UsageService) Record(ctx context.Context, sessionID, messageID string, reqType models.RequestType, usage *models.TokenUsage) {
	if usage == nil {
		return
	}

	entry := &models.UsageLedgerEntry{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		MessageID:    messageID,
		RequestType:  string(reqType),
		Model:        usage.Model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
		CreatedAt:    time.Now().UTC(),
	}

	if rate, pricedAs, ok := s.resolveRate(usage.Model); ok {
		in := float64(usage.InputTokens) / 1_000_000 * rate.Input
		out := float64(usage.OutputTokens) / 1_000_000 * rate.Output
		total := in + out
		entry.CostInput = &in
		entry.CostOutput = &out
		entry.CostTotal = &total
		entry.PricingModel = pricedAs
	}

	if err := s.db.InsertUsageEntry(ctx, entry); err != nil {
		s.logger.Warn("usage entry not recorded",
			zap.String("session_id", sessionID),
			zap.String("model", usage.Model),
			zap.Error(err))
	}
}

// resolveRate matches the model name exactly first, then falls back to the
// longest pricing key that prefixes the name. Versioned deployments like
// gemini-1.5-pro-002 price under gemini-1.5-pro this way.
func (s *UsageService) resolveRate(model string) (config.ModelRate, string, bool) {
	if rate, ok := s.pricing[model]; ok {
		return rate, model, true
	}

	bestKey := ""
	var bestRate config.ModelRate
	for key, rate := range s.pricing {
		if strings.HasPrefix(model, key) && len(key) > len(bestKey) {
			bestKey = key
			bestRate = rate
		}
	}
	if bestKey == "" {
		return config.ModelRate{}, "", false
	}
	return bestRate, bestKey, true
}

// Totals returns the all-time rollup of the ledger.
func (s *UsageService) Totals(ctx context.Context) (*core.UsageAggregate, error) {
	return s.db.UsageTotals(ctx)
}

// BySession returns one rollup row per session.
func (s *UsageService) BySession(ctx context.Context) ([]core.UsageAggregate, error) {
	return s.db.UsageBySession(ctx)
}
