package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/services"
)

// SessionHandler exposes session listing, transcripts and feedback.
type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	sessions, err := h.sessions.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.sessions.History(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SubmitFeedback records the end-of-session rating. Only terminal
// sessions accept it.
func (h *SessionHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err))
		return
	}

	if err := h.sessions.SetFeedback(r.Context(), chi.URLParam(r, "session_id"), req.Rating, req.Comment); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type helpfulRequest struct {
	Helpful bool `json:"helpful"`
}

func (h *SessionHandler) MarkMessageHelpful(w http.ResponseWriter, r *http.Request) {
	var req helpfulRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err))
		return
	}

	err := h.sessions.MarkMessageHelpful(r.Context(),
		chi.URLParam(r, "session_id"), chi.URLParam(r, "message_id"), req.Helpful)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
