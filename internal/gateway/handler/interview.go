package handler

import (
	"context"
	"net/http"
	"strings"

	"elicit/internal/interview"
	"elicit/internal/schema"
)

type turnResponse struct {
	SessionID         string              `json:"session_id"`
	Phase             interview.Phase     `json:"phase"`
	Role              string              `json:"role,omitempty"`
	RoleConfidenceLow bool                `json:"role_confidence_low,omitempty"`
	Question          *interview.Question `json:"question"`
	Done              bool                `json:"done"`
	Partial           bool                `json:"partial,omitempty"`
	Progress          *schema.Report      `json:"progress,omitempty"`
}

func (h *Service) turn(ctx context.Context, s *interview.Session) turnResponse {
	q := h.engine.NextQuestion(ctx, s)
	resp := turnResponse{
		SessionID:         s.ID,
		Phase:             s.Phase,
		Role:              s.Role,
		RoleConfidenceLow: s.RoleConfidenceLow,
		Question:          q,
		Done:              q == nil && s.Phase == interview.PhaseRoleSpecific,
		Partial:           s.Partial,
	}
	if s.Role != "" {
		report := h.engine.Progress(s)
		resp.Progress = &report
	}
	return resp
}

// HandleStart opens (or resumes) a session and returns the first pending
// question. An unknown preset role falls back to the normal intake flow.
func (h *Service) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		SessionID  string `json:"session_id"`
		PresetRole string `json:"preset_role"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	s, created := h.sessions.GetOrCreate(in.SessionID)
	s.Lock()
	defer s.Unlock()
	if created && strings.TrimSpace(in.PresetRole) != "" {
		h.engine.PresetRole(s, strings.TrimSpace(in.PresetRole))
	}
	resp := h.turn(r.Context(), s)
	h.sessions.Persist(s)
	writeJSON(w, http.StatusOK, resp)
}

// HandleAnswer records one answer and returns the next question.
func (h *Service) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		SessionID  string `json:"session_id"`
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.QuestionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id and question_id are required")
		return
	}

	s, ok := h.sessions.Get(strings.TrimSpace(in.SessionID))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.Lock()
	defer s.Unlock()
	if !s.Issued(strings.TrimSpace(in.QuestionID)) {
		writeError(w, http.StatusBadRequest, "unknown question_id")
		return
	}
	h.engine.RecordAnswer(s, strings.TrimSpace(in.QuestionID), in.Answer)
	resp := h.turn(r.Context(), s)
	h.sessions.Persist(s)
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatus reports the full session snapshot.
func (h *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.Lock()
	defer s.Unlock()

	out := map[string]any{
		"session_id":           s.ID,
		"phase":                s.Phase,
		"role":                 s.Role,
		"role_confidence_low":  s.RoleConfidenceLow,
		"role_candidates":      s.RoleCandidates,
		"answered_questions":   s.AnsweredCount(),
		"partial":              s.Partial,
		"uploaded_files":       s.UploadedFiles,
		"completed_interviews": len(s.CompletedInterviews),
	}
	if s.Role != "" {
		out["progress"] = h.engine.Progress(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRestart archives the finished interview and opens a fresh intake
// instance in the same session.
func (h *Service) HandleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		SessionID  string `json:"session_id"`
		PresetRole string `json:"preset_role"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Archive()
	if strings.TrimSpace(in.PresetRole) != "" {
		h.engine.PresetRole(s, strings.TrimSpace(in.PresetRole))
	}
	resp := h.turn(r.Context(), s)
	h.sessions.Persist(s)
	writeJSON(w, http.StatusOK, resp)
}
