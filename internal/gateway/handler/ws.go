package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"elicit/internal/interview"
	"elicit/internal/schema"
)

const (
	interviewWSWriteWait = 10 * time.Second
	interviewWSPongWait  = 60 * time.Second
	interviewWSPingEvery = (interviewWSPongWait * 9) / 10
)

var interviewWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type interviewWSInbound struct {
	Type       string `json:"type"`
	QuestionID string `json:"questionId,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

type interviewWSOutbound struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	Phase    interview.Phase     `json:"phase,omitempty"`
	Role     string              `json:"role,omitempty"`
	Question *interview.Question `json:"question,omitempty"`
	Done     bool                `json:"done,omitempty"`
	Partial  bool                `json:"partial,omitempty"`
	Progress *schema.Report      `json:"progress,omitempty"`
	Code     string              `json:"code,omitempty"`
	Message  string              `json:"message,omitempty"`
}

// HandleInterviewWS drives one interview over a websocket. The server pushes
// a question after every recorded answer; the flow is the same one-turn
// state machine the JSON endpoints use, over a held connection.
func (h *Service) HandleInterviewWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	s, _ := h.sessions.GetOrCreate(sessionID)

	conn, err := interviewWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(interviewWSPongWait)); err != nil {
		log.Printf("interview ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(interviewWSPongWait))
	})

	writeCh := make(chan interviewWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(interviewWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(interviewWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(interviewWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	push := func(out interviewWSOutbound) {
		select {
		case writeCh <- out:
		case <-ctx.Done():
		}
	}

	push(interviewWSOutbound{Type: "session", Message: s.ID})
	s.Lock()
	first := h.wsTurn(ctx, s, push)
	h.sessions.Persist(s)
	s.Unlock()
	push(first)

	for {
		var in interviewWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			push(interviewWSOutbound{Type: "pong"})
		case "answer":
			qid := strings.TrimSpace(in.QuestionID)
			if qid == "" {
				push(interviewWSOutbound{Type: "error", Code: "invalid_argument", Message: "questionId is required"})
				continue
			}
			s.Lock()
			if !s.Issued(qid) {
				s.Unlock()
				push(interviewWSOutbound{Type: "error", Code: "invalid_argument", Message: "unknown questionId"})
				continue
			}
			h.engine.RecordAnswer(s, qid, in.Answer)
			out := h.wsTurn(ctx, s, push)
			h.sessions.Persist(s)
			s.Unlock()
			push(out)
		case "status":
			s.Lock()
			out := interviewWSOutbound{Type: "status", Phase: s.Phase, Role: s.Role, Partial: s.Partial}
			if s.Role != "" {
				report := h.engine.Progress(s)
				out.Progress = &report
			}
			s.Unlock()
			push(out)
		default:
			push(interviewWSOutbound{Type: "error", Code: "invalid_argument", Message: "unknown message type"})
		}
	}
}

// wsTurn must be called with the session lock held. Partial generation text
// is relayed as chunk frames before the final question frame; a replayed
// question produces no chunks.
func (h *Service) wsTurn(ctx context.Context, s *interview.Session, push func(interviewWSOutbound)) interviewWSOutbound {
	q := h.engine.NextQuestionStream(ctx, s, func(chunk string) {
		push(interviewWSOutbound{Type: "chunk", Text: chunk})
	})
	out := interviewWSOutbound{
		Type:     "question",
		Phase:    s.Phase,
		Role:     s.Role,
		Question: q,
		Partial:  s.Partial,
	}
	if q == nil && s.Phase == interview.PhaseRoleSpecific {
		out.Type = "done"
		out.Done = true
	}
	if s.Role != "" {
		report := h.engine.Progress(s)
		out.Progress = &report
	}
	return out
}
