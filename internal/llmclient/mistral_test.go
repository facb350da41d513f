package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	raw, err := ExtractJSON(`{"a": 1}`)
	if err != nil {
		t.Fatalf("plain object: %v", err)
	}
	if string(raw) != `{"a": 1}` {
		t.Fatalf("raw = %s", raw)
	}

	raw, err = ExtractJSON("Hier ist das Ergebnis:\n```json\n{\"a\": 1}\n```\nViel Erfolg!")
	if err != nil {
		t.Fatalf("wrapped object: %v", err)
	}
	var out map[string]int
	if err := json.Unmarshal(raw, &out); err != nil || out["a"] != 1 {
		t.Fatalf("unmarshal wrapped: %v %v", out, err)
	}

	if _, err := ExtractJSON("kein json hier"); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("err = %v, want ErrInvalidJSON", err)
	}
}

func TestMistralGenerateJSON(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req mistralChatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"question":{"id":"q1","text":"Frage?"}}`}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewMistralClient("test-key", "test-model")
	if err != nil {
		t.Fatalf("NewMistralClient: %v", err)
	}
	c.baseURL = srv.URL

	raw, err := c.GenerateJSON(context.Background(), "prompt", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	var env struct {
		Question struct{ ID string } `json:"question"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Question.ID != "q1" {
		t.Fatalf("payload = %s (%v)", raw, err)
	}
}

func TestMistralContextLengthIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"context_length exceeded"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewMistralClient("k", "")
	c.baseURL = srv.URL

	_, err := c.GenerateJSON(context.Background(), "p", nil)
	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("err = %v, want PermanentError", err)
	}
}
