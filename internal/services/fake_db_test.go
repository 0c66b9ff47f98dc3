package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

// fakeDB is an in-memory DbClient for service tests. It mirrors the
// constraints the real schema enforces, notably the unique
// (session, solution) suggestion pair and the write-once image analysis.
type fakeDB struct {
	mu sync.Mutex

	sessions    map[string]*models.Session
	messages    []*models.Message
	images      []*models.ImageObservation
	categories  []models.ProblemCategory
	causes      []models.ProblemCause
	solutions   []models.ProblemSolution
	states      map[string]*models.SessionProblemState
	suggestions []*models.SessionSuggestion
	usage       []*models.UsageLedgerEntry
	knowledge   []*models.KnowledgeCase

	seq int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		sessions: map[string]*models.Session{},
		states:   map[string]*models.SessionProblemState{},
	}
}

func (f *fakeDB) CreateSession(ctx context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeDB) GetSessionByID(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", core.ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeDB) ListSessions(ctx context.Context, limit, offset int) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeDB) TouchSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (f *fakeDB) CloseSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionInProgress {
		return false, nil
	}
	s.Status = status
	s.EndedAt = &endedAt
	return true, nil
}

func (f *fakeDB) SetSessionFeedback(ctx context.Context, id string, rating int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", core.ErrNotFound, id)
	}
	s.FeedbackRating = &rating
	s.FeedbackText = &comment
	return nil
}

func (f *fakeDB) CreateMessage(ctx context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	m.Seq = f.seq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	cp := *m
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeDB) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: message %s", core.ErrNotFound, id)
}

func (f *fakeDB) ListMessagesBySession(ctx context.Context, sessionID string, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) UpdateMessageMetadata(ctx context.Context, id string, meta models.MessageMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			m.Metadata = meta
			return nil
		}
	}
	return fmt.Errorf("%w: message %s", core.ErrNotFound, id)
}

func (f *fakeDB) SetMessageHelpful(ctx context.Context, id string, helpful bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			m.Helpful = &helpful
			return nil
		}
	}
	return fmt.Errorf("%w: message %s", core.ErrNotFound, id)
}

func (f *fakeDB) CreateImageObservation(ctx context.Context, obs *models.ImageObservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	obs.Seq = f.seq
	cp := *obs
	f.images = append(f.images, &cp)
	return nil
}

func (f *fakeDB) FillImageAnalysis(ctx context.Context, id, description string, confidence float64, label string, details []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.images {
		if img.ID == id && img.Description == "" {
			img.Description = description
			img.Confidence = confidence
			img.Label = label
			img.Details = details
			return nil
		}
	}
	return nil
}

func (f *fakeDB) ListImagesBySession(ctx context.Context, sessionID string) ([]models.ImageObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ImageObservation
	for _, img := range f.images {
		if img.SessionID == sessionID {
			out = append(out, *img)
		}
	}
	return out, nil
}

func (f *fakeDB) ListCategories(ctx context.Context) ([]models.ProblemCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ProblemCategory(nil), f.categories...), nil
}

func (f *fakeDB) GetCategoryBySlug(ctx context.Context, slug string) (*models.ProblemCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].Slug == slug {
			cp := f.categories[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: category %s", core.ErrNotFound, slug)
}

func (f *fakeDB) ListCausesByCategory(ctx context.Context, categoryID string) ([]models.ProblemCause, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProblemCause
	for _, c := range f.causes {
		if c.CategoryID == categoryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDB) ListSolutionsByCause(ctx context.Context, causeID string) ([]models.ProblemSolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProblemSolution
	for _, s := range f.solutions {
		if s.CauseID == causeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeDB) GetSolutionBySlug(ctx context.Context, slug string) (*models.ProblemSolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.solutions {
		if f.solutions[i].Slug == slug {
			cp := f.solutions[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: solution %s", core.ErrNotFound, slug)
}

func (f *fakeDB) ListSolutionsByIDs(ctx context.Context, ids []string) ([]models.ProblemSolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.ProblemSolution
	for _, s := range f.solutions {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeDB) UpsertCategory(ctx context.Context, cat *models.ProblemCategory) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].Slug == cat.Slug {
			cat.ID = f.categories[i].ID
			f.categories[i].Name = cat.Name
			f.categories[i].Description = cat.Description
			return false, nil
		}
	}
	f.categories = append(f.categories, *cat)
	return true, nil
}

func (f *fakeDB) UpsertCause(ctx context.Context, cause *models.ProblemCause) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.causes {
		if f.causes[i].CategoryID == cause.CategoryID && f.causes[i].Slug == cause.Slug {
			cause.ID = f.causes[i].ID
			f.causes[i] = *cause
			return false, nil
		}
	}
	f.causes = append(f.causes, *cause)
	return true, nil
}

func (f *fakeDB) UpsertSolution(ctx context.Context, sol *models.ProblemSolution) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.solutions {
		if f.solutions[i].Slug == sol.Slug {
			sol.ID = f.solutions[i].ID
			f.solutions[i] = *sol
			return false, nil
		}
	}
	f.solutions = append(f.solutions, *sol)
	return true, nil
}

func (f *fakeDB) DeleteSolutionsNotIn(ctx context.Context, causeID string, keepSlugs []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := map[string]bool{}
	for _, s := range keepSlugs {
		keep[s] = true
	}
	var kept []models.ProblemSolution
	removed := 0
	for _, s := range f.solutions {
		if s.CauseID == causeID && !keep[s.Slug] {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	f.solutions = kept
	return removed, nil
}

func (f *fakeDB) GetProblemState(ctx context.Context, sessionID string) (*models.SessionProblemState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: state for %s", core.ErrNotFound, sessionID)
	}
	cp := *st
	return &cp, nil
}

func (f *fakeDB) UpsertProblemState(ctx context.Context, state *models.SessionProblemState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *state
	f.states[state.SessionID] = &cp
	return nil
}

func (f *fakeDB) InsertSuggestion(ctx context.Context, s *models.SessionSuggestion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.suggestions {
		if existing.SessionID == s.SessionID && existing.SolutionID == s.SolutionID {
			return false, nil
		}
	}
	cp := *s
	f.suggestions = append(f.suggestions, &cp)
	return true, nil
}

func (f *fakeDB) ListSuggestionsBySession(ctx context.Context, sessionID string) ([]models.SessionSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SessionSuggestion
	for _, s := range f.suggestions {
		if s.SessionID == sessionID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeDB) UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.suggestions {
		if s.ID == id {
			s.Status = status
			s.Notes = notes
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: suggestion %s", core.ErrNotFound, id)
}

func (f *fakeDB) InsertUsageEntry(ctx context.Context, entry *models.UsageLedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.usage = append(f.usage, &cp)
	return nil
}

func (f *fakeDB) UsageTotals(ctx context.Context) (*core.UsageAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agg := &core.UsageAggregate{}
	sessions := map[string]bool{}
	for _, e := range f.usage {
		agg.Records++
		agg.InputTokens += e.InputTokens
		agg.OutputTokens += e.OutputTokens
		agg.TotalTokens += e.TotalTokens
		if e.CostTotal != nil {
			agg.CostInput += *e.CostInput
			agg.CostOutput += *e.CostOutput
			agg.CostTotal += *e.CostTotal
		}
		sessions[e.SessionID] = true
	}
	agg.Sessions = len(sessions)
	return agg, nil
}

func (f *fakeDB) UsageBySession(ctx context.Context) ([]core.UsageAggregate, error) {
	return nil, nil
}

func (f *fakeDB) InsertKnowledgeCase(ctx context.Context, kc *models.KnowledgeCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *kc
	f.knowledge = append(f.knowledge, &cp)
	return nil
}

func (f *fakeDB) SearchKnowledgeCases(ctx context.Context, queryVec []float32, limit int) ([]models.KnowledgeCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.KnowledgeCase
	for _, kc := range f.knowledge {
		out = append(out, *kc)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDB) Close() error { return nil }
