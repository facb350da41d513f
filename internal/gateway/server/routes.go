package server

import (
	"net/http"

	"elicit/internal/gateway/handler"
	"elicit/internal/gateway/middleware"
)

func NewMux(svc *handler.Service) http.Handler {
	mux := http.NewServeMux()

	// Interview flow
	mux.HandleFunc("/api/start", svc.HandleStart)
	mux.HandleFunc("/api/answer", svc.HandleAnswer)
	mux.HandleFunc("/api/status", svc.HandleStatus)
	mux.HandleFunc("/api/restart", svc.HandleRestart)

	// Session administration
	mux.HandleFunc("/api/sessions", svc.HandleSessions)

	// Documents
	mux.HandleFunc("/api/upload", svc.HandleUpload)
	mux.HandleFunc("/api/document", svc.HandleDocument)
	mux.HandleFunc("/api/download", svc.HandleDownload)

	// Streaming interview
	mux.HandleFunc("/ws/interview", svc.HandleInterviewWS)

	return middleware.CORS(mux)
}
