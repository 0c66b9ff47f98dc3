package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
)

type fakeDecider struct {
	decision *models.Decision
	usage    *models.TokenUsage
	err      error
	lastReq  core.ClassifyRequest
}

func (d *fakeDecider) Classify(ctx context.Context, req core.ClassifyRequest) (*models.Decision, *models.TokenUsage, error) {
	d.lastReq = req
	if d.err != nil {
		return nil, d.usage, d.err
	}
	cp := *d.decision
	return &cp, d.usage, nil
}

type fakeReplier struct {
	reply *core.Reply
	err   error
}

func (r *fakeReplier) Respond(ctx context.Context, req core.RespondRequest) (*core.Reply, *models.TokenUsage, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	return r.reply, nil, nil
}

type fakeVision struct {
	summaries []core.ImageSummary
	err       error
}

func (v *fakeVision) Describe(ctx context.Context, images []core.ImagePayload, userNote, locale string) ([]core.ImageSummary, *models.TokenUsage, error) {
	if v.err != nil {
		return nil, nil, v.err
	}
	return v.summaries, nil, nil
}

type fakeEmbedder struct{}

func (e *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeTickets struct {
	mu      sync.Mutex
	created []core.TicketRequest
	err     error
}

func (t *fakeTickets) CreateTicket(ctx context.Context, req core.TicketRequest) (*core.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	t.created = append(t.created, req)
	return &core.Ticket{TicketID: "TCK-0A1B2C3D", CreatedAt: time.Now().UTC()}, nil
}

type fakeStorage struct{}

func (fakeStorage) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return fmt.Sprintf("https://%s.example.com/%s", bucket, key), nil
}

func (fakeStorage) DeleteFile(ctx context.Context, bucket, key string) error { return nil }

func (fakeStorage) GetFile(ctx context.Context, bucket, key string) ([]byte, error) { return nil, nil }

func (fakeStorage) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, nil
}

// seedCatalog loads one category with one cause and two ordered solutions.
func seedCatalog(db *fakeDB) {
	db.categories = []models.ProblemCategory{
		{ID: "cat-1", Slug: "not-draining", Name: "Not draining", Description: "Water stays in the tub"},
	}
	db.causes = []models.ProblemCause{
		{ID: "cause-1", CategoryID: "cat-1", Slug: "clogged-filter", Name: "Clogged filter", Priority: 1},
	}
	db.solutions = []models.ProblemSolution{
		{ID: "sol-1", CauseID: "cause-1", Slug: "clean-filter", Title: "Clean the filter", Instructions: "Remove and rinse the drain filter.", StepOrder: 1},
		{ID: "sol-2", CauseID: "cause-1", Slug: "check-drain-hose", Title: "Check the drain hose", Instructions: "Look for kinks in the hose.", StepOrder: 2},
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
