package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

const maxClarifyingQuestions = 2

// ClassifierService runs the decision step of a turn: it assembles the
// catalog prompt, calls the decision model, repairs decisions that break
// the session's invariants, and keeps the session's working hypothesis
// current. Model failures degrade into a clarifying fallback instead of
// failing the turn.
type ClassifierService struct {
	db      core.DbClient
	decider core.DecisionClient
	tracker *SuggestionTracker
	timeout time.Duration
	logger  *zap.Logger
}

func NewClassifierService(db core.DbClient, decider core.DecisionClient, tracker *SuggestionTracker, timeout time.Duration, logger *zap.Logger) *ClassifierService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClassifierService{db: db, decider: decider, tracker: tracker, timeout: timeout, logger: logger}
}

// ClassifyInput is one turn's worth of classification context.
type ClassifyInput struct {
	SessionID string
	UserText  string
	Locale    string
	Events    []string
	// ImageOnlyFirstTurn marks a first message that carried images and no
	// text. Such turns never escalate and never get a form.
	ImageOnlyFirstTurn bool
}

// Classify returns the decision for one turn. The third result reports
// whether the decision is the degraded fallback.
func (s *ClassifierService) Classify(ctx context.Context, in ClassifyInput) (*models.Decision, *models.TokenUsage, bool) {
	attempted, err := s.tracker.ListAttempted(ctx, in.SessionID)
	if err != nil {
		s.logger.Warn("attempted solutions unavailable", zap.String("session_id", in.SessionID), zap.Error(err))
	}

	state, err := s.db.GetProblemState(ctx, in.SessionID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.logger.Warn("problem state unavailable", zap.String("session_id", in.SessionID), zap.Error(err))
	}

	prompt, currentCategory, err := s.buildCatalogPrompt(ctx, state, attempted)
	if err != nil {
		s.logger.Warn("catalog prompt unavailable", zap.String("session_id", in.SessionID), zap.Error(err))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	decision, usage, err := s.decider.Classify(callCtx, core.ClassifyRequest{
		UserText:        in.UserText,
		Locale:          in.Locale,
		Events:          in.Events,
		CatalogPrompt:   prompt,
		Attempted:       attempted,
		CurrentCategory: currentCategory,
	})
	if err != nil {
		s.logger.Warn("classification failed, using fallback",
			zap.String("session_id", in.SessionID), zap.Error(err))
		return fallbackDecision(), usage, true
	}

	s.repair(ctx, in, decision, attempted)
	s.persistHypothesis(ctx, in.SessionID, decision, state)
	return decision, usage, false
}

// fallbackDecision is used when the decision model is unreachable or
// returns garbage. It asks for more detail and changes nothing else.
func fallbackDecision() *models.Decision {
	return &models.Decision{
		Intent:        models.IntentClarifying,
		NextAction:    models.ActionAskClarifyingQuestion,
		Confidence:    0,
		Rationale:     "classification unavailable, asking for more detail",
		NeedsMoreInfo: true,
		ClarifyingQuestions: []string{
			"Could you describe the problem in a bit more detail?",
		},
		RequestType: models.RequestClarification,
	}
}

// repair enforces the invariants a raw model decision may violate.
func (s *ClassifierService) repair(ctx context.Context, in ClassifyInput, d *models.Decision, attempted []string) {
	d.ClarifyingQuestions = dedupeQuestions(d.ClarifyingQuestions)

	if in.ImageOnlyFirstTurn {
		switch d.NextAction {
		case models.ActionEscalate, models.ActionPresentEscalationForm,
			models.ActionPresentFeedbackForm, models.ActionPresentResolutionForm:
			d.NextAction = models.ActionAskClarifyingQuestion
			d.NeedsMoreInfo = true
			d.Escalate = false
			if len(d.ClarifyingQuestions) == 0 {
				d.ClarifyingQuestions = []string{"Thanks for the photo. What exactly is the appliance doing wrong?"}
			}
		}
	}

	if d.NextAction == models.ActionSuggestSolution {
		s.repairSuggestion(ctx, d, attempted)
	}
}

// repairSuggestion keeps the dedup invariant: a solution already offered
// in this session never comes back as a fresh suggestion. An unknown slug
// degrades to a clarifying question; an attempted slug is swapped for the
// next untried step, and when the cause is exhausted the decision becomes
// an escalation offer.
func (s *ClassifierService) repairSuggestion(ctx context.Context, d *models.Decision, attempted []string) {
	if d.SolutionSlug == "" {
		d.NextAction = models.ActionAskClarifyingQuestion
		d.NeedsMoreInfo = true
		return
	}

	sol, err := s.db.GetSolutionBySlug(ctx, d.SolutionSlug)
	if err != nil {
		s.logger.Warn("decision names unknown solution", zap.String("slug", d.SolutionSlug), zap.Error(err))
		d.SolutionSlug = ""
		d.SolutionTitle = ""
		d.SolutionSteps = ""
		d.NextAction = models.ActionAskClarifyingQuestion
		d.NeedsMoreInfo = true
		return
	}

	if !containsFold(attempted, sol.Slug) {
		s.fillSolution(d, sol)
		return
	}
	if d.RepeatSuggestion {
		// A knowing repeat is allowed.
		s.fillSolution(d, sol)
		return
	}

	next, err := s.nextUntriedSolution(ctx, sol.CauseID, attempted)
	if err != nil {
		s.logger.Warn("solution lookup failed", zap.String("cause_id", sol.CauseID), zap.Error(err))
	}
	if next != nil {
		s.fillSolution(d, next)
		return
	}

	// Every step for this cause has been tried.
	d.SolutionSlug = ""
	d.SolutionTitle = ""
	d.SolutionSteps = ""
	d.NextAction = models.ActionPresentEscalationForm
	d.Escalate = true
	if d.EscalateReason == "" {
		d.EscalateReason = "all known steps for the suspected cause have been tried"
	}
	d.RequestType = models.RequestEscalation
}

func (s *ClassifierService) fillSolution(d *models.Decision, sol *models.ProblemSolution) {
	d.SolutionSlug = sol.Slug
	d.SolutionTitle = sol.Title
	d.SolutionSteps = sol.Instructions
	if sol.RequiresEscalation {
		d.Escalate = true
		if d.EscalateReason == "" {
			d.EscalateReason = "this step needs a qualified technician"
		}
		d.NextAction = models.ActionPresentEscalationForm
		d.RequestType = models.RequestEscalation
	}
}

func (s *ClassifierService) nextUntriedSolution(ctx context.Context, causeID string, attempted []string) (*models.ProblemSolution, error) {
	solutions, err := s.db.ListSolutionsByCause(ctx, causeID)
	if err != nil {
		return nil, err
	}
	for i := range solutions {
		if !containsFold(attempted, solutions[i].Slug) {
			return &solutions[i], nil
		}
	}
	return nil, nil
}

// persistHypothesis upserts the session's working category and cause when
// the decision names them. A manual override set by an operator wins over
// the classifier.
func (s *ClassifierService) persistHypothesis(ctx context.Context, sessionID string, d *models.Decision, prev *models.SessionProblemState) {
	if d.CategorySlug == "" {
		return
	}
	if prev != nil && prev.ManualOverride {
		return
	}

	cat, err := s.db.GetCategoryBySlug(ctx, d.CategorySlug)
	if err != nil {
		s.logger.Warn("decision names unknown category", zap.String("slug", d.CategorySlug), zap.Error(err))
		return
	}

	state := &models.SessionProblemState{
		SessionID:  sessionID,
		CategoryID: cat.ID,
		Confidence: d.Confidence,
		Source:     "classifier",
		UpdatedAt:  time.Now().UTC(),
	}
	if d.CauseSlug != "" {
		causes, err := s.db.ListCausesByCategory(ctx, cat.ID)
		if err == nil {
			for _, c := range causes {
				if strings.EqualFold(c.Slug, d.CauseSlug) {
					state.CauseID = c.ID
					break
				}
			}
		}
	}

	if err := s.db.UpsertProblemState(ctx, state); err != nil {
		s.logger.Warn("problem state not saved", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// buildCatalogPrompt renders the category list, narrowed to causes and
// per-step solutions once a hypothesis exists. Attempted solutions are
// labelled so the model excludes them itself.
func (s *ClassifierService) buildCatalogPrompt(ctx context.Context, state *models.SessionProblemState, attempted []string) (string, string, error) {
	categories, err := s.db.ListCategories(ctx)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	b.WriteString("Problem categories:\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "- %s: %s", cat.Slug, cat.Name)
		if cat.Description != "" {
			fmt.Fprintf(&b, " (%s)", cat.Description)
		}
		b.WriteString("\n")
	}

	currentCategory := ""
	if state == nil || state.CategoryID == "" {
		return b.String(), "", nil
	}

	for _, cat := range categories {
		if cat.ID != state.CategoryID {
			continue
		}
		currentCategory = cat.Slug
		causes, err := s.db.ListCausesByCategory(ctx, cat.ID)
		if err != nil {
			return b.String(), currentCategory, err
		}
		fmt.Fprintf(&b, "\nCauses under %s, most likely first:\n", cat.Slug)
		for _, cause := range causes {
			fmt.Fprintf(&b, "- %s: %s\n", cause.Slug, cause.Name)
			solutions, err := s.db.ListSolutionsByCause(ctx, cause.ID)
			if err != nil {
				return b.String(), currentCategory, err
			}
			for _, sol := range solutions {
				fmt.Fprintf(&b, "    - solution %s: %s", sol.Slug, sol.Title)
				if containsFold(attempted, sol.Slug) {
					b.WriteString(" [already tried]")
				}
				if sol.RequiresEscalation {
					b.WriteString(" [needs technician]")
				}
				b.WriteString("\n")
			}
		}
		break
	}
	return b.String(), currentCategory, nil
}

func dedupeQuestions(qs []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, maxClarifyingQuestions)
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == maxClarifyingQuestions {
			break
		}
	}
	return out
}

func containsFold(list []string, want string) bool {
	for _, item := range list {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
