package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// MistralClient calls the Mistral Chat Completions API and asks for JSON.
// See: https://docs.mistral.ai/api/
type MistralClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewMistralClient creates a Mistral client. If apiKey is empty, it falls
// back to the MISTRAL_API_KEY env var.
func NewMistralClient(apiKey, model string) (*MistralClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("MISTRAL_API_KEY")
	}
	if model == "" {
		model = "mistral-small-latest"
	}
	return &MistralClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.mistral.ai/v1/chat/completions",
	}, nil
}

func (m *MistralClient) Name() string { return "Mistral:" + m.model }
func (m *MistralClient) Close() error { return nil }

type mistralChatReq struct {
	Model          string            `json:"model"`
	Messages       []mistralMessage  `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}
type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type mistralChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateJSON assembles a system message from prompt and a user message from
// input and requests JSON output.
func (m *MistralClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.MarshalIndent(input, "", "  ")
	userContent := "[INPUT JSON]\n" + string(in)

	reqBody := mistralChatReq{
		Model: m.model,
		Messages: []mistralMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: userContent},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(body) > max {
			body = body[:max]
		}
		err := fmt.Errorf("mistral: unexpected status %s: %s", resp.Status, string(body))
		if resp.StatusCode == 400 && strings.Contains(string(body), "context_length") {
			return nil, NewPermanentError(err)
		}
		return nil, err
	}
	var out mistralChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, ErrInvalidJSON
	}
	return ExtractJSON(out.Choices[0].Message.Content)
}

// GenerateJSONStream calls GenerateJSON and relays the final payload as a
// single chunk. Mistral's SSE streaming is not wired here; the interview
// state machine only depends on the final structured result.
func (m *MistralClient) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	raw, err := m.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		onChunk(string(raw))
	}
	return raw, nil
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON validates that payload is a JSON object, falling back to the
// first {...} block when the model wrapped it in prose.
func ExtractJSON(payload string) (json.RawMessage, error) {
	payload = strings.TrimSpace(payload)
	var scratch any
	if err := json.Unmarshal([]byte(payload), &scratch); err == nil {
		return json.RawMessage(payload), nil
	}
	if block := jsonBlockRe.FindString(payload); block != "" {
		if err := json.Unmarshal([]byte(block), &scratch); err == nil {
			return json.RawMessage(block), nil
		}
	}
	return nil, ErrInvalidJSON
}
