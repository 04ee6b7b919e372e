package middleware

import (
	"encoding/json"
	"net/http"
)

// Codes match the ones the handler package puts in its error envelope.
const (
	codeUnauthorized = "unauthorized"
	codeRateLimited  = "rate_limited"
)

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
