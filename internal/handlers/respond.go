package handlers

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape for success, validation, and
// error outcomes: {status, message, data?}.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Status: status, Message: message, Data: data})
}

func successResponse(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusOK, message, nil)
}

func successResponseWithData(w http.ResponseWriter, message string, data any) {
	writeEnvelope(w, http.StatusOK, message, data)
}

func validationError(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusBadRequest, message, nil)
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusUnauthorized, message, nil)
}

func notFoundResponse(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusNotFound, message, nil)
}

func duplicateResponse(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusConflict, message, nil)
}

func errorResponse(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusInternalServerError, message, nil)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
