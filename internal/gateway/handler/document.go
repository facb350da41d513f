package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"elicit/internal/interview"
	"elicit/internal/store/document"
)

// uploadLimit bounds one document upload. Plain-text process descriptions
// rarely exceed a few hundred kilobytes.
const uploadLimit = 10 << 20

// HandleUpload accepts a multipart text document, stores it and feeds it
// into the retrieval index so role-phase questions can cite it.
func (h *Service) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(uploadLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	s, ok := h.sessions.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, uploadLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !utf8.Valid(content) {
		writeError(w, http.StatusBadRequest, "only utf-8 text documents are supported")
		return
	}

	name := strings.TrimSpace(header.Filename)
	if name == "" {
		name = "document.txt"
	}
	if h.documents != nil {
		if err := h.documents.Put(r.Context(), sessionID, name, content); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("store document: %v", err))
			return
		}
	}
	if h.index != nil {
		h.index.AddDocument(name, string(content))
	}

	s.Lock()
	s.UploadedFiles = append(s.UploadedFiles, interview.UploadedFile{
		Name: name,
		Key:  sessionID + "/" + name,
		Size: int64(len(content)),
	})
	h.sessions.Persist(s)
	s.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"filename": name,
		"size":     len(content),
		"chunks":   h.indexLen(),
	})
}

func (h *Service) indexLen() int {
	if h.index == nil {
		return 0
	}
	return h.index.Len()
}

// HandleDocument renders the process documentation for a session.
func (h *Service) HandleDocument(w http.ResponseWriter, r *http.Request) {
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
	rendered := h.docs.Render(r.Context(), s)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"role":       s.Role,
		"document":   rendered,
	})
}

// HandleDownload streams a previously uploaded document back.
func (h *Service) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if sessionID == "" || name == "" {
		writeError(w, http.StatusBadRequest, "session_id and name are required")
		return
	}
	if h.documents == nil {
		writeError(w, http.StatusNotFound, "document storage disabled")
		return
	}
	content, err := h.documents.Get(r.Context(), sessionID, name)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}
