package core

import (
	"context"
	"io"
	"time"

	"github.com/tobiadeyemi/Resolva/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	// Sessions
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByID(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]models.Session, error)
	TouchSession(ctx context.Context, id string) error
	// CloseSession sets a terminal status. It only touches rows still
	// in_progress and reports whether a row was updated.
	CloseSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time) (bool, error)
	SetSessionFeedback(ctx context.Context, id string, rating int, comment string) error

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	// ListMessagesBySession returns messages oldest first. A limit of 0
	// means no limit.
	ListMessagesBySession(ctx context.Context, sessionID string, limit, offset int) ([]models.Message, error)
	UpdateMessageMetadata(ctx context.Context, id string, meta models.MessageMetadata) error
	SetMessageHelpful(ctx context.Context, id string, helpful bool) error

	// Image observations
	CreateImageObservation(ctx context.Context, obs *models.ImageObservation) error
	FillImageAnalysis(ctx context.Context, id, description string, confidence float64, label string, details []string) error
	ListImagesBySession(ctx context.Context, sessionID string) ([]models.ImageObservation, error)

	// Catalog
	ListCategories(ctx context.Context) ([]models.ProblemCategory, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.ProblemCategory, error)
	ListCausesByCategory(ctx context.Context, categoryID string) ([]models.ProblemCause, error)
	ListSolutionsByCause(ctx context.Context, causeID string) ([]models.ProblemSolution, error)
	GetSolutionBySlug(ctx context.Context, slug string) (*models.ProblemSolution, error)
	ListSolutionsByIDs(ctx context.Context, ids []string) ([]models.ProblemSolution, error)
	UpsertCategory(ctx context.Context, cat *models.ProblemCategory) (created bool, err error)
	UpsertCause(ctx context.Context, cause *models.ProblemCause) (created bool, err error)
	UpsertSolution(ctx context.Context, sol *models.ProblemSolution) (created bool, err error)
	DeleteSolutionsNotIn(ctx context.Context, causeID string, keepSlugs []string) (int, error)

	// Session problem state
	GetProblemState(ctx context.Context, sessionID string) (*models.SessionProblemState, error)
	UpsertProblemState(ctx context.Context, state *models.SessionProblemState) error

	// Suggestion ledger
	// InsertSuggestion is idempotent per (session, solution): a duplicate
	// insert is a no-op and reports inserted=false.
	InsertSuggestion(ctx context.Context, s *models.SessionSuggestion) (inserted bool, err error)
	ListSuggestionsBySession(ctx context.Context, sessionID string) ([]models.SessionSuggestion, error)
	UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus, notes string) error

	// Usage ledger
	InsertUsageEntry(ctx context.Context, entry *models.UsageLedgerEntry) error
	UsageTotals(ctx context.Context) (*UsageAggregate, error)
	UsageBySession(ctx context.Context) ([]UsageAggregate, error)

	// Knowledge cases
	InsertKnowledgeCase(ctx context.Context, kc *models.KnowledgeCase) error
	SearchKnowledgeCases(ctx context.Context, queryVec []float32, limit int) ([]models.KnowledgeCase, error)

	Close() error
}

// UsageAggregate is a read-side rollup of the usage ledger.
type UsageAggregate struct {
	SessionID    string  `json:"session_id,omitempty"`
	Records      int     `json:"records"`
	Sessions     int     `json:"sessions,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostInput    float64 `json:"cost_input"`
	CostOutput   float64 `json:"cost_output"`
	CostTotal    float64 `json:"cost_total"`
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ClassifyRequest carries everything the decision model needs for one turn.
// The prompt text itself is assembled inside the client.
type ClassifyRequest struct {
	UserText        string
	Locale          string
	Events          []string
	CatalogPrompt   string
	Attempted       []string
	CurrentCategory string
}

// DecisionClient maps a turn to a structured decision. Implementations
// must reject free-form unparsable output with an error; recovery into
// a fallback decision is the engine's job.
type DecisionClient interface {
	Classify(ctx context.Context, req ClassifyRequest) (*models.Decision, *models.TokenUsage, error)
}

// Reply is the generated user-facing text for a decision.
type Reply struct {
	Text            string
	SuggestedAction string
}

// RespondRequest turns a decision into friendly text. No new choices
// are made downstream of the decision.
type RespondRequest struct {
	Decision     models.Decision
	Locale       string
	SimilarCases []string
}

// ReplyClient generates the user-facing reply for a decision.
type ReplyClient interface {
	Respond(ctx context.Context, req RespondRequest) (*Reply, *models.TokenUsage, error)
}

// ImagePayload is one raw image handed to the vision collaborator.
type ImagePayload struct {
	Data []byte
	Mime string
}

// ImageSummary is the vision collaborator's verdict on one image.
type ImageSummary struct {
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Label       string   `json:"label"`
	Details     []string `json:"details"`
}

// VisionClient describes appliance photos. Summaries come back in input
// order, one per image.
type VisionClient interface {
	Describe(ctx context.Context, images []ImagePayload, userNote, locale string) ([]ImageSummary, *models.TokenUsage, error)
}

// EmbeddingClient produces vectors for knowledge-case search.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TicketRequest asks the ticketing collaborator to open a ticket.
// Consent must be explicit; the collaborator rejects without it.
type TicketRequest struct {
	Consent   bool   `json:"consent"`
	Summary   string `json:"summary"`
	SessionID string `json:"session_id"`
}

// Ticket is the collaborator's confirmation of a created ticket.
type Ticket struct {
	TicketID  string    `json:"ticket_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketClient opens support tickets for escalated sessions.
type TicketClient interface {
	CreateTicket(ctx context.Context, req TicketRequest) (*Ticket, error)
}
