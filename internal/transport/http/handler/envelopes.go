package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cropintel-api/internal/domain"
)

const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper. Code is a stable machine
// readable identifier clients can branch on.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// AuthEnvelope wraps login and registration responses.
type AuthEnvelope struct {
	Bearer  string       `json:"Bearer,omitempty"`
	User    *domain.User `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}

// ResetTokenEnvelope is returned by a successful reset-code verification.
type ResetTokenEnvelope struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token"`
}

type PersonalizationEnvelope struct {
	Personalization *domain.Personalization `json:"personalization"`
	Message         string                  `json:"message,omitempty"`
}

type ChatSessionsEnvelope struct {
	Sessions []domain.ChatSession `json:"sessions"`
}

type ChatSessionEnvelope struct {
	Session *domain.ChatSession `json:"session"`
	Message string              `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, Code: code})
}

// decodeJSON reads a bounded JSON body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return false
	}
	return true
}
