package handler

import (
	"net/http"

	"github.com/cropintel-api/internal/application/profile"
	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/transport/http/middleware"
)

// ProfileHandler serves the authenticated user's profile and personalization.
type ProfileHandler struct {
	svc profile.Service
}

func NewProfileHandler(svc profile.Service) *ProfileHandler { return &ProfileHandler{svc: svc} }

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: u})
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateName(r.Context(), userID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: u, Message: "profile updated"})
}

func (h *ProfileHandler) GetPersonalization(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPersonalization(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PersonalizationEnvelope{Personalization: p})
}

func (h *ProfileHandler) SavePersonalization(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var in domain.PersonalizationInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.SavePersonalization(r.Context(), userID, in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PersonalizationEnvelope{Personalization: p, Message: "personalization saved"})
}

// currentUserID reads the caller's id from the JWT claims and writes a 401
// when there are none.
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return "", false
	}
	return claims.UserID, true
}
