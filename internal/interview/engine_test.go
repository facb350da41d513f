package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"elicit/internal/schema"
)

type stubLLM struct {
	payload string
}

func (s *stubLLM) Name() string { return "stub" }
func (s *stubLLM) Close() error { return nil }

func (s *stubLLM) GenerateJSON(_ context.Context, _ string, _ any) (json.RawMessage, error) {
	if s.payload == "" {
		return nil, errors.New("stub has no payload")
	}
	return json.RawMessage(s.payload), nil
}

func (s *stubLLM) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(string)) (json.RawMessage, error) {
	raw, err := s.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		onChunk(string(raw))
	}
	return raw, nil
}

func engineRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r, err := schema.FromSchemas(&schema.RoleSchema{
		Role:     "it",
		RoleName: "IT",
		Themes: []schema.Theme{
			{ID: "systemlandschaft", Name: "Systemlandschaft", Fields: []schema.Field{
				{ID: "systeme_im_einsatz", Question: "Welche Systeme sind im Einsatz?", Required: true},
				{ID: "schnittstellen", Question: "Welche Schnittstellen existieren?", Required: true},
			}},
		},
		Completion: schema.CompletionCriteria{MinimumRequiredFields: 2},
	}, &schema.RoleSchema{
		Role:     "fach",
		RoleName: "Fachabteilung",
		Themes: []schema.Theme{
			{ID: "taetigkeiten", Name: "Tätigkeiten", Fields: []schema.Field{
				{ID: "arbeitsschritte", Question: "Welche Arbeitsschritte führen Sie aus?", Required: true},
			}},
		},
	}, &schema.RoleSchema{
		Role:     "management",
		RoleName: "Management",
		Themes: []schema.Theme{
			{ID: "steuerung", Name: "Steuerung", Fields: []schema.Field{
				{ID: "kennzahlen", Question: "Welche Kennzahlen steuern den Prozess?", Required: true},
			}},
		},
	})
	if err != nil {
		t.Fatalf("FromSchemas: %v", err)
	}
	return r
}

func offlineEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(engineRegistry(t), NewClassifier(nil), NewGenerator(nil), nil)
}

func TestIntakeFlowToRolePhase(t *testing.T) {
	ctx := context.Background()
	e := offlineEngine(t)
	s := NewSession("s1")

	answers := map[string]string{
		"role_function":            "Ich bin Systemadministrator",
		"technical_responsibility": "Ja",
		"operational_decisions":    "Nein",
		"project_leadership":       "Nein",
	}

	for i := 0; i < IntakeQuota; i++ {
		q := e.NextQuestion(ctx, s)
		if q == nil {
			t.Fatalf("question %d: got nil", i+1)
		}
		if s.Phase != PhaseIntake {
			t.Fatalf("question %d: phase = %s", i+1, s.Phase)
		}
		// Re-invoking without an answer replays the same question.
		if again := e.NextQuestion(ctx, s); again.ID != q.ID {
			t.Fatalf("replay returned %s, want %s", again.ID, q.ID)
		}
		answer, ok := answers[q.ID]
		if !ok {
			answer = "Keine besonderen Angaben"
		}
		e.RecordAnswer(s, q.ID, answer)
	}

	q := e.NextQuestion(ctx, s)
	if s.Phase != PhaseRoleSpecific {
		t.Fatalf("phase = %s, want role_specific", s.Phase)
	}
	if s.Role != RoleIT {
		t.Fatalf("role = %q, want it", s.Role)
	}
	if s.RoleConfidenceLow {
		t.Fatal("0.70 score must be accepted with full confidence")
	}
	if q == nil || q.FieldID != "systeme_im_einsatz" {
		t.Fatalf("first role question = %+v, want field systeme_im_einsatz", q)
	}

	e.RecordAnswer(s, q.ID, "SAP und ein Ticketsystem")
	if s.SchemaFields["systeme_im_einsatz"] != "SAP und ein Ticketsystem" {
		t.Fatalf("schema field not filled: %v", s.SchemaFields)
	}

	q = e.NextQuestion(ctx, s)
	if q == nil || q.FieldID != "schnittstellen" {
		t.Fatalf("second role question = %+v", q)
	}
	e.RecordAnswer(s, q.ID, "REST zwischen SAP und Ticketsystem")

	if q = e.NextQuestion(ctx, s); q != nil {
		t.Fatalf("interview should be complete, got %+v", q)
	}
	if !e.Progress(s).Complete {
		t.Fatal("progress should report complete")
	}
	if s.Partial {
		t.Fatal("a properly completed interview is not partial")
	}
}

func TestClarifyingCap(t *testing.T) {
	ctx := context.Background()
	// The classifier sees an ambiguous distribution on every attempt; the
	// question generator stays offline so static fallbacks are used.
	ambiguous := &stubLLM{payload: `{"candidates":[{"role":"it","score":0.5},{"role":"fach","score":0.3},{"role":"management","score":0.2}],"explain":"unklar"}`}
	e := NewEngine(engineRegistry(t), NewClassifier(ambiguous), NewGenerator(nil), nil)
	s := NewSession("s2")

	for i := 0; i < IntakeQuota; i++ {
		q := e.NextQuestion(ctx, s)
		e.RecordAnswer(s, q.ID, "unspezifisch")
	}

	for i := 1; i <= ClarifyingCap; i++ {
		q := e.NextQuestion(ctx, s)
		if q == nil {
			t.Fatalf("clarifying round %d: got nil", i)
		}
		if want := fmt.Sprintf("clarifying_%d", i); q.ID != want {
			t.Fatalf("clarifying id = %s, want %s", q.ID, want)
		}
		if s.Phase != PhaseIntake {
			t.Fatalf("round %d: phase = %s", i, s.Phase)
		}
		e.RecordAnswer(s, q.ID, "immer noch unspezifisch")
	}

	q := e.NextQuestion(ctx, s)
	if s.Phase != PhaseRoleSpecific {
		t.Fatalf("phase = %s, want role_specific after exhausting clarifications", s.Phase)
	}
	if s.Role != RoleIT {
		t.Fatalf("role = %q, want the leading candidate", s.Role)
	}
	if !s.RoleConfidenceLow {
		t.Fatal("forced acceptance must be flagged low confidence")
	}
	if q == nil {
		t.Fatal("role phase should open with a question")
	}
}

func TestNoSignalAssignsDefaultRole(t *testing.T) {
	ctx := context.Background()
	e := offlineEngine(t)
	s := NewSession("s3")

	for i := 0; i < IntakeQuota; i++ {
		q := e.NextQuestion(ctx, s)
		e.RecordAnswer(s, q.ID, "dazu sage ich nichts")
	}

	// The uniform fallback distribution peaks at 0.4, so clarification runs
	// before the default role is accepted.
	for i := 1; i <= ClarifyingCap; i++ {
		q := e.NextQuestion(ctx, s)
		e.RecordAnswer(s, q.ID, "dazu sage ich nichts")
	}
	e.NextQuestion(ctx, s)
	if s.Role != DefaultRole {
		t.Fatalf("role = %q, want default %q", s.Role, DefaultRole)
	}
	if !s.RoleConfidenceLow {
		t.Fatal("default assignment is low confidence")
	}
}

func TestPresetRoleSkipsIntake(t *testing.T) {
	ctx := context.Background()
	e := offlineEngine(t)
	s := NewSession("s4")
	e.PresetRole(s, "management")

	if s.Phase != PhaseRoleSpecific {
		t.Fatalf("phase = %s", s.Phase)
	}
	q := e.NextQuestion(ctx, s)
	if q == nil || q.FieldID != "kennzahlen" {
		t.Fatalf("question = %+v, want the management schema field", q)
	}

	// Unknown preset roles leave the session in intake.
	s2 := NewSession("s5")
	e.PresetRole(s2, "vertrieb")
	if s2.Phase != PhaseIntake {
		t.Fatalf("unknown role must not change the phase, got %s", s2.Phase)
	}
}

func TestEmptyAnswerReasksWithFreshID(t *testing.T) {
	ctx := context.Background()
	e := offlineEngine(t)
	s := NewSession("s6")
	e.PresetRole(s, "it")

	q1 := e.NextQuestion(ctx, s)
	e.RecordAnswer(s, q1.ID, "   ")

	q2 := e.NextQuestion(ctx, s)
	if q2 == nil {
		t.Fatal("blank answer leaves the field unfilled, expected a re-ask")
	}
	if q2.ID == q1.ID {
		t.Fatal("an answered question id must never be reissued")
	}
	if q2.FieldID != q1.FieldID {
		t.Fatalf("re-ask should target the same field, got %s and %s", q1.FieldID, q2.FieldID)
	}
}

func TestRoleQuestionCapForcesPartial(t *testing.T) {
	ctx := context.Background()
	e := offlineEngine(t)
	s := NewSession("s7")
	e.PresetRole(s, "it")

	for i := 0; i < RoleQuestionCap; i++ {
		q := e.NextQuestion(ctx, s)
		if q == nil {
			t.Fatalf("round %d: expected a question", i+1)
		}
		e.RecordAnswer(s, q.ID, " ")
	}
	if q := e.NextQuestion(ctx, s); q != nil {
		t.Fatalf("cap reached, want nil, got %+v", q)
	}
	if !s.Partial {
		t.Fatal("hitting the cap must mark the interview partial")
	}
}

func TestArchiveAndRestart(t *testing.T) {
	ctx := context.Background()
	e := offlineEngine(t)
	s := NewSession("s8")
	e.PresetRole(s, "fach")

	q := e.NextQuestion(ctx, s)
	e.RecordAnswer(s, q.ID, "Rechnungen prüfen und freigeben")
	if q = e.NextQuestion(ctx, s); q != nil {
		t.Fatalf("single-field schema should be done, got %+v", q)
	}

	s.UploadedFiles = append(s.UploadedFiles, UploadedFile{Name: "prozess.txt", Size: 10})
	s.Archive()

	if len(s.CompletedInterviews) != 1 {
		t.Fatalf("archives = %d, want 1", len(s.CompletedInterviews))
	}
	arch := s.CompletedInterviews[0]
	if arch.Role != "fach" || arch.SchemaFields["arbeitsschritte"] == "" {
		t.Fatalf("archive lost data: %+v", arch)
	}
	if s.Phase != PhaseIntake || s.Role != "" || len(s.Answers) != 0 {
		t.Fatalf("session not reset: phase=%s role=%q answers=%d", s.Phase, s.Role, len(s.Answers))
	}
	if len(s.UploadedFiles) != 1 {
		t.Fatal("uploads must survive a restart")
	}

	// The fresh instance starts at intake question one again.
	q = e.NextQuestion(ctx, s)
	if q == nil || s.Phase != PhaseIntake {
		t.Fatalf("restart should reopen intake, got %+v in phase %s", q, s.Phase)
	}
}

func TestNextQuestionStreamRelaysChunks(t *testing.T) {
	ctx := context.Background()
	llm := &stubLLM{payload: `{"question":{"id":"frage_1","text":"Welche Rolle haben Sie?","type":"free_text"}}`}
	e := NewEngine(engineRegistry(t), NewClassifier(nil), NewGenerator(llm), nil)
	s := NewSession("s9")

	var chunks []string
	collect := func(c string) { chunks = append(chunks, c) }

	q := e.NextQuestionStream(ctx, s, collect)
	if q == nil || q.ID != "frage_1" {
		t.Fatalf("question = %+v, want frage_1", q)
	}
	if len(chunks) == 0 {
		t.Fatal("expected partial text before the final question")
	}
	if !strings.Contains(strings.Join(chunks, ""), "Welche Rolle") {
		t.Fatalf("chunks carry no question text: %q", chunks)
	}

	// Replaying the outstanding question skips generation entirely.
	n := len(chunks)
	if again := e.NextQuestionStream(ctx, s, collect); again == nil || again.ID != q.ID {
		t.Fatalf("replay returned %+v, want %s", again, q.ID)
	}
	if len(chunks) != n {
		t.Fatalf("replay emitted %d extra chunks", len(chunks)-n)
	}

	// The blocking variant keeps working on the same session.
	e.RecordAnswer(s, q.ID, "Administrator")
	if q2 := e.NextQuestion(ctx, s); q2 == nil || q2.ID == q.ID {
		t.Fatalf("second question = %+v", q2)
	}
}
