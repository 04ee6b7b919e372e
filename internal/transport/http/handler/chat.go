package handler

import (
	"net/http"

	"github.com/cropintel-api/internal/application/chat"
	"github.com/cropintel-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ChatHandler serves the caller's chat history.
type ChatHandler struct {
	svc chat.Service
}

func NewChatHandler(svc chat.Service) *ChatHandler { return &ChatHandler{svc: svc} }

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	sessions, err := h.svc.List(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatSessionsEnvelope{Sessions: sessions})
}

func (h *ChatHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req domain.SaveChatSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.svc.Save(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatSessionEnvelope{Session: s, Message: "chat session saved"})
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "sessionID")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "chat session deleted"})
}
