package models

import (
	"time"
)

// SessionStatus is the lifecycle state of a troubleshooting session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionResolved   SessionStatus = "resolved"
	SessionEscalated  SessionStatus = "escalated"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionResolved || s == SessionEscalated
}

// Session represents one troubleshooting conversation.
type Session struct {
	ID             string        `db:"id" json:"id"`
	Status         SessionStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
	EndedAt        *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
	FeedbackRating *int          `db:"feedback_rating" json:"feedback_rating,omitempty"`
	FeedbackText   *string       `db:"feedback_text" json:"feedback_text,omitempty"`
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one entry in a session's append-only transcript.
type Message struct {
	ID        string          `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id"`
	Role      MessageRole     `db:"role" json:"role"`
	Content   string          `db:"content" json:"content"`
	Metadata  MessageMetadata `db:"metadata" json:"metadata"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Seq       int64           `db:"seq" json:"-"`
	Helpful   *bool           `db:"helpful" json:"helpful,omitempty"`
}

// MessageMetadata is the structured envelope stored alongside a message.
// Assistant messages carry the offered form and the classification trace;
// user messages carry form submissions.
type MessageMetadata struct {
	SuggestedActions  []string        `json:"suggested_actions,omitempty"`
	FollowUpForm      *FollowUpForm   `json:"follow_up_form,omitempty"`
	FormConsumed      bool            `json:"form_consumed,omitempty"`
	FormSubmission    *FormSubmission `json:"form_submission,omitempty"`
	Trace             *DecisionTrace  `json:"trace,omitempty"`
	HasImages         bool            `json:"has_images,omitempty"`
	EscalationDecline bool            `json:"escalation_decline,omitempty"`
}

// DecisionTrace records why the assistant replied the way it did.
type DecisionTrace struct {
	Intent     Intent     `json:"intent"`
	NextAction NextAction `json:"next_action"`
	Confidence float64    `json:"confidence"`
	Rationale  string     `json:"rationale"`
	Fallback   bool       `json:"fallback,omitempty"`
}

// ImageObservation stores one uploaded image and its vision analysis.
// The analysis fields are filled exactly once and never mutated after that.
type ImageObservation struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	MessageID   string    `db:"message_id" json:"message_id"`
	StorageURI  string    `db:"storage_uri" json:"storage_uri"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	Description string    `db:"description" json:"description"`
	Confidence  float64   `db:"confidence" json:"confidence"`
	Label       string    `db:"label" json:"label"`
	Details     []string  `db:"details" json:"details"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Seq         int64     `db:"seq" json:"-"`
}

// ProblemCategory is a top-level entry in the troubleshooting catalog.
type ProblemCategory struct {
	ID          string `db:"id" json:"id"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// ProblemCause is a possible root cause within a category.
type ProblemCause struct {
	ID          string `db:"id" json:"id"`
	CategoryID  string `db:"category_id" json:"category_id"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Priority    int    `db:"priority" json:"priority"`
}

// ProblemSolution is one remedy for a cause, ordered by StepOrder.
type ProblemSolution struct {
	ID                 string `db:"id" json:"id"`
	CauseID            string `db:"cause_id" json:"cause_id"`
	Slug               string `db:"slug" json:"slug"`
	Title              string `db:"title" json:"title"`
	Summary            string `db:"summary" json:"summary"`
	Instructions       string `db:"instructions" json:"instructions"`
	StepOrder          int    `db:"step_order" json:"step_order"`
	RequiresEscalation bool   `db:"requires_escalation" json:"requires_escalation"`
}

// SessionProblemState is the current working hypothesis for a session,
// distinct from the catalog itself. One row per session, upserted after
// each classified turn.
type SessionProblemState struct {
	SessionID      string    `db:"session_id" json:"session_id"`
	CategoryID     string    `db:"category_id" json:"category_id"`
	CauseID        string    `db:"cause_id" json:"cause_id"`
	Confidence     float64   `db:"confidence" json:"confidence"`
	Source         string    `db:"source" json:"source"`
	ManualOverride bool      `db:"manual_override" json:"manual_override"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SuggestionStatus tracks what happened to an offered solution.
type SuggestionStatus string

const (
	SuggestionSuggested  SuggestionStatus = "suggested"
	SuggestionCompleted  SuggestionStatus = "completed"
	SuggestionNotHelpful SuggestionStatus = "not_helpful"
	SuggestionEscalated  SuggestionStatus = "escalated"
)

// SessionSuggestion is the deduplication ledger: at most one row per
// (session, solution) pair.
type SessionSuggestion struct {
	ID         string           `db:"id" json:"id"`
	SessionID  string           `db:"session_id" json:"session_id"`
	SolutionID string           `db:"solution_id" json:"solution_id"`
	Status     SuggestionStatus `db:"status" json:"status"`
	Notes      string           `db:"notes" json:"notes"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// FormKind discriminates the follow-up confirmation gates.
type FormKind string

const (
	FormResolutionCheck FormKind = "resolution_check"
	FormEscalation      FormKind = "escalation"
	FormFeedback        FormKind = "feedback"
)

// FormStatus is the lifecycle of a form instance.
type FormStatus string

const (
	FormOffered   FormStatus = "offered"
	FormSubmitted FormStatus = "submitted"
	FormDismissed FormStatus = "dismissed"
)

// FormOption is one selectable answer for a form question.
type FormOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FollowUpForm is the yes/no confirmation gate attached to an assistant
// reply. Each kind has a fixed single-question payload.
type FollowUpForm struct {
	Kind        FormKind     `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Question    string       `json:"question"`
	InputType   string       `json:"input_type"`
	Required    bool         `json:"required"`
	Options     []FormOption `json:"options"`
}

// FormSubmission is the client's answer to a previously offered form,
// carried in the metadata of the user message that replies to it.
type FormSubmission struct {
	Status    FormStatus `json:"status"`
	RepliedTo string     `json:"replied_to"`
	Value     string     `json:"value,omitempty"`
}

// UsageLedgerEntry is one immutable record of an external model call.
// Cost fields are nil when no pricing entry matched the model.
type UsageLedgerEntry struct {
	ID           string    `db:"id" json:"id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	MessageID    string    `db:"message_id" json:"message_id"`
	RequestType  string    `db:"request_type" json:"request_type"`
	Model        string    `db:"model" json:"model"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	TotalTokens  int       `db:"total_tokens" json:"total_tokens"`
	CostInput    *float64  `db:"cost_input" json:"cost_input,omitempty"`
	CostOutput   *float64  `db:"cost_output" json:"cost_output,omitempty"`
	CostTotal    *float64  `db:"cost_total" json:"cost_total,omitempty"`
	PricingModel string    `db:"pricing_model" json:"pricing_model,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// KnowledgeCase is an embedded summary of a resolved session, searched
// by similarity to enrich responder prompts.
type KnowledgeCase struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Summary   string    `db:"summary" json:"summary"`
	Embedding []float32 `db:"embedding" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
