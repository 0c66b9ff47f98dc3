package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/models"
	"github.com/tobiadeyemi/Resolva/internal/services"
)

// AssistantHandler exposes the conversational endpoint.
type AssistantHandler struct {
	workflow *services.WorkflowService
}

func NewAssistantHandler(workflow *services.WorkflowService) *AssistantHandler {
	return &AssistantHandler{workflow: workflow}
}

type turnImage struct {
	Data     string `json:"data"` // base64
	MimeType string `json:"mime_type,omitempty"`
}

type turnRequest struct {
	SessionID string                 `json:"session_id,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Locale    string                 `json:"locale,omitempty"`
	Images    []turnImage            `json:"images,omitempty"`
	Form      *models.FormSubmission `json:"form,omitempty"`
}

type turnMessage struct {
	ID               string                `json:"id"`
	Content          string                `json:"content"`
	SuggestedActions []string              `json:"suggested_actions,omitempty"`
	FollowUpForm     *models.FollowUpForm  `json:"follow_up_form,omitempty"`
	Trace            *models.DecisionTrace `json:"trace,omitempty"`
}

type turnResponse struct {
	SessionID     string               `json:"session_id"`
	SessionStatus models.SessionStatus `json:"session_status"`
	UserMessageID string               `json:"user_message_id"`
	Message       *turnMessage         `json:"message,omitempty"`
}

// SubmitMessage runs one troubleshooting turn. The message field is null
// when the turn warranted no reply (a dismissed form).
func (h *AssistantHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err))
		return
	}

	uploads := make([]services.ImageUpload, 0, len(req.Images))
	for i, img := range req.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			writeError(w, fmt.Errorf("%w: image %d is not valid base64", core.ErrValidation, i))
			return
		}
		uploads = append(uploads, services.ImageUpload{Data: data, MimeHint: img.MimeType})
	}

	result, err := h.workflow.SubmitTurn(r.Context(), services.TurnInput{
		SessionID: req.SessionID,
		Text:      req.Text,
		Locale:    req.Locale,
		Images:    uploads,
		Form:      req.Form,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := turnResponse{
		SessionID:     result.Session.ID,
		SessionStatus: result.Session.Status,
		UserMessageID: result.User.ID,
	}
	if result.Assistant != nil {
		resp.Message = &turnMessage{
			ID:               result.Assistant.ID,
			Content:          result.Assistant.Content,
			SuggestedActions: result.Assistant.Metadata.SuggestedActions,
			FollowUpForm:     result.Assistant.Metadata.FollowUpForm,
			Trace:            result.Assistant.Metadata.Trace,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
