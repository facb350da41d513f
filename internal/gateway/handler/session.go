package handler

import (
	"errors"
	"net/http"
	"strings"

	"elicit/internal/interview"
)

// HandleSessions lists stored sessions (GET) or deletes one (DELETE).
func (h *Service) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		infos, err := h.sessions.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if infos == nil {
			infos = []interview.StoredSessionInfo{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		if err := h.sessions.Delete(id); err != nil {
			if errors.Is(err, interview.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
