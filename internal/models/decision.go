package models

// Intent is what the user is trying to do on this turn.
type Intent string

const (
	IntentNewProblem        Intent = "new_problem"
	IntentClarifying        Intent = "clarifying"
	IntentFeedbackPositive  Intent = "feedback_positive"
	IntentFeedbackNegative  Intent = "feedback_negative"
	IntentRequestEscalation Intent = "request_escalation"
	IntentConfirmResolved   Intent = "confirm_resolved"
	IntentOutOfScope        Intent = "out_of_scope"
	IntentUnintelligible    Intent = "unintelligible"
	IntentContradictory     Intent = "contradictory"
)

// NextAction is what the assistant should do next.
type NextAction string

const (
	ActionSuggestSolution       NextAction = "suggest_solution"
	ActionAskClarifyingQuestion NextAction = "ask_clarifying_question"
	ActionPresentResolutionForm NextAction = "present_resolution_form"
	ActionPresentEscalationForm NextAction = "present_escalation_form"
	ActionPresentFeedbackForm   NextAction = "present_feedback_form"
	ActionCloseResolved         NextAction = "close_resolved"
	ActionEscalate              NextAction = "escalate"
	ActionDeclineOutOfScope     NextAction = "decline_out_of_scope"
	ActionRequestClearInput     NextAction = "request_clear_input"
)

// RequestType labels a classified turn for usage accounting.
type RequestType string

const (
	RequestTroubleshoot    RequestType = "troubleshoot"
	RequestResolutionCheck RequestType = "resolution_check"
	RequestEscalation      RequestType = "escalation"
	RequestClarification   RequestType = "clarification"
	RequestImageAnalysis   RequestType = "image_analysis"
)

// Decision is the structured output of classification. It drives the
// rest of the pipeline; reply generation consumes it without making
// further choices.
type Decision struct {
	Intent     Intent     `json:"intent"`
	NextAction NextAction `json:"next_action"`

	CategorySlug string `json:"category_slug,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	CauseSlug    string `json:"cause_slug,omitempty"`
	CauseName    string `json:"cause_name,omitempty"`
	SolutionSlug string `json:"solution_slug,omitempty"`

	SolutionTitle string `json:"solution_title,omitempty"`
	SolutionSteps string `json:"solution_steps,omitempty"`
	// RepeatSuggestion marks a solution the classifier knowingly re-offers.
	RepeatSuggestion bool `json:"repeat_suggestion,omitempty"`

	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`

	Escalate       bool   `json:"escalate"`
	EscalateReason string `json:"escalate_reason,omitempty"`

	NeedsMoreInfo       bool     `json:"needs_more_info"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`

	RequestType RequestType `json:"request_type"`
}

// TokenUsage is the raw token accounting extracted from one model call.
type TokenUsage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}
