package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"vizintel/api/internal/common"
)

func decodeJSON(r *http.Request, out interface{}) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeServiceError maps service errors onto status codes. notFound is the
// message used for common.ErrNotFound.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if msg, ok := common.Message(err); ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, common.ErrAccountSuspended):
		writeError(w, http.StatusForbidden, "Account suspended")
	case errors.Is(err, common.ErrInvalidExternalToken):
		writeError(w, http.StatusBadRequest, "Invalid token")
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, common.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, common.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, common.ErrUpstream):
		s.log.Error(r.Context(), "upstream failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Upstream service unavailable")
	default:
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}
