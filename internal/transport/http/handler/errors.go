package handler

import (
	"errors"
	"net/http"

	"github.com/cropintel-api/internal/domain"
)

const codeValidation = "validation_error"

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorTable is matched in order; specific errors come before their class.
var errorTable = []errorMapping{
	{domain.ErrOTPNotFound, http.StatusNotFound, "otp_not_found", "no verification code found for this email, request a new one"},
	{domain.ErrOTPExpired, http.StatusUnauthorized, "otp_expired", "verification code has expired, request a new one"},
	{domain.ErrOTPMismatch, http.StatusUnauthorized, "otp_mismatch", "invalid verification code"},
	{domain.ErrInvalidResetToken, http.StatusUnauthorized, "invalid_reset_token", "reset session is no longer valid, verify your code again"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid user id/email or password"},
	{domain.ErrAlreadyRegistered, http.StatusConflict, "already_registered", "email already registered"},
	{domain.ErrHandleTaken, http.StatusConflict, "handle_taken", "user id already exists"},
	{domain.ErrEmailTaken, http.StatusConflict, "email_taken", "email already exists"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found", "no account found with this email"},
	{domain.ErrDeliveryFailed, http.StatusBadGateway, "delivery_failed", "failed to send verification email"},
	{domain.ErrPersistence, http.StatusServiceUnavailable, "persistence_failed", "service temporarily unavailable, try again later"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{domain.ErrConflict, http.StatusConflict, "conflict", "conflict"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},
}

// httpError maps a service error to a status code and a user-facing message.
// Validation errors keep their field details; everything else uses a fixed text.
func httpError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrBadRequest) {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, m.message)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
