package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"elicit/internal/doc"
	"elicit/internal/interview"
	"elicit/internal/retrieval"
	"elicit/internal/store/document"
)

// Service holds every collaborator the HTTP and websocket endpoints need.
type Service struct {
	engine    *interview.Engine
	sessions  *interview.Registry
	documents document.Store
	index     *retrieval.Index
	docs      *doc.Generator
}

func NewService(engine *interview.Engine, sessions *interview.Registry, documents document.Store, index *retrieval.Index, docs *doc.Generator) *Service {
	return &Service{
		engine:    engine,
		sessions:  sessions,
		documents: documents,
		index:     index,
		docs:      docs,
	}
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(into)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("handler: writing response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
