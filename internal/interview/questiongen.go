package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"elicit/internal/llmclient"
	"elicit/internal/schema"
)

// IntakeQuota is the fixed number of role-agnostic intake questions asked
// before classification.
const IntakeQuota = 9

// QA is one transcript entry passed to the completion service as
// conversational context.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Generator produces question text through the completion service. Every
// generate method has a static counterpart used by the engine when the
// service fails or returns something unparseable; the fallbacks are keyed by
// intake index, candidate pair or field id and are themselves idempotent.
type Generator struct {
	llm llmclient.Client
}

func NewGenerator(llm llmclient.Client) *Generator {
	return &Generator{llm: llm}
}

// generate runs the blocking completion call, or the streaming variant when a
// chunk sink is present. Both yield the same final structured payload; only
// the transport layer ever passes a sink.
func (g *Generator) generate(ctx context.Context, prompt string, input any, onChunk func(string)) (json.RawMessage, error) {
	if onChunk != nil {
		return g.llm.GenerateJSONStream(ctx, prompt, input, onChunk)
	}
	return g.llm.GenerateJSON(ctx, prompt, input)
}

// The nine intake topics, in the order they must be covered. Topics 7-9 are
// the yes/no discriminators the classifier weights highest.
var intakeTopics = []string{
	"Rolle/Funktion der Person (offen formuliert)",
	"Aufgaben und Verantwortungsbereich",
	"Ziele im Prozess",
	"Typische Probleme und Herausforderungen",
	"Zusammenarbeit mit anderen Rollen",
	"Erfolgsmessung",
	"Operative Entscheidungen (Ja/Nein)",
	"Technische Verantwortung (Ja/Nein)",
	"Projekt- oder Teamleitung (Ja/Nein)",
}

const intakePrompt = `Du bist ein Experte für Prozessanalyse und führst ein strukturiertes Interview zur Rollendefinition. Die Einstiegsfragen decken neun Themen in fester Reihenfolge ab; formuliere jetzt genau EINE Frage zum angegebenen Thema. Beziehe dich, wo sinnvoll, auf die bisherigen Antworten.

Fragen zu den Ja/Nein-Themen haben type "yes_no" mit options ["Ja","Nein"], alle anderen type "free_text" ohne options.

Antworte AUSSCHLIESSLICH als JSON:
{"question":{"id":"eindeutige_id","text":"Die Frage","type":"free_text|yes_no","options":[],"required":true,"hint":""}}`

// GenerateIntakeQuestion produces intake question number index (1-based),
// given the full prior transcript. Retrieved document context is deliberately
// never passed here: intake questions must stay neutral so they cannot bias
// the classification signal.
func (g *Generator) GenerateIntakeQuestion(ctx context.Context, index int, transcript []QA, onChunk func(string)) (*Question, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("no completion client configured")
	}
	if index < 1 || index > IntakeQuota {
		return nil, fmt.Errorf("intake index %d out of range", index)
	}
	input := map[string]any{
		"thema":      intakeTopics[index-1],
		"frage_nr":   index,
		"transcript": transcript,
	}
	raw, err := g.generate(ctx, intakePrompt, input, onChunk)
	if err != nil {
		return nil, err
	}
	q, err := parseSingleQuestion(raw)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// FallbackIntakeQuestion returns the static intake question for the given
// 1-based index. The catalog mirrors the nine canonical topics; its ids feed
// the classifier's category matchers.
func FallbackIntakeQuestion(index int) *Question {
	if index < 1 || index > len(fallbackIntake) {
		return nil
	}
	q := fallbackIntake[index-1]
	return &q
}

var fallbackIntake = []Question{
	{ID: "role_function", Text: "Welche Rolle bzw. Funktion haben Sie in Ihrem Unternehmen?", Type: QuestionFreeText, Required: true, Hint: "Beschreiben Sie Ihre Position oder Funktion"},
	{ID: "tasks_responsibility", Text: "Welche Aufgaben gehören zu Ihrem Verantwortungsbereich?", Type: QuestionFreeText, Required: true, Hint: "Beschreiben Sie Ihre typischen Tätigkeiten"},
	{ID: "process_goals", Text: "Welche Ziele möchten Sie in diesem Prozess erreichen?", Type: QuestionFreeText, Required: true},
	{ID: "problems_challenges", Text: "Welche Probleme oder Herausforderungen treten typischerweise bei Ihrer Arbeit auf?", Type: QuestionFreeText, Required: true},
	{ID: "collaboration", Text: "Mit welchen Rollen oder Personen arbeiten Sie regelmäßig zusammen?", Type: QuestionFreeText, Required: true},
	{ID: "success_measurement", Text: "Woran messen Sie Erfolg in diesem Prozess?", Type: QuestionFreeText, Required: true, Hint: "Welche Metriken oder Kennzahlen sind wichtig?"},
	{ID: "operational_decisions", Text: "Treffen Sie hauptsächlich operative Entscheidungen?", Type: QuestionYesNo, Options: []string{"Ja", "Nein"}, Required: true},
	{ID: "technical_responsibility", Text: "Sind Sie verantwortlich für technische Systeme oder Software?", Type: QuestionYesNo, Options: []string{"Ja", "Nein"}, Required: true},
	{ID: "project_leadership", Text: "Leiten Sie Projekte oder Teams?", Type: QuestionYesNo, Options: []string{"Ja", "Nein"}, Required: true},
}

const clarifyPrompt = `Du führst ein Interview zur Rollendefinition. Die Klassifikation zwischen den beiden genannten Rollen ist noch unsicher. Formuliere genau EINE kurze Klärungsfrage, die zwischen den beiden Rollen unterscheidet.

Antworte AUSSCHLIESSLICH als JSON:
{"question":{"id":"%s","text":"Die Frage","type":"free_text","required":true}}`

// GenerateClarifyingQuestion asks for a question discriminating the two
// leading candidates. n is the 1-based clarifying-question number.
func (g *Generator) GenerateClarifyingQuestion(ctx context.Context, candidates []RoleCandidate, n int, onChunk func(string)) (*Question, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("no completion client configured")
	}
	id := clarifyingID(n)
	input := map[string]any{"kandidaten": candidates}
	raw, err := g.generate(ctx, fmt.Sprintf(clarifyPrompt, id), input, onChunk)
	if err != nil {
		return nil, err
	}
	q, err := parseSingleQuestion(raw)
	if err != nil {
		return nil, err
	}
	q.ID = id
	return q, nil
}

func clarifyingID(n int) string { return fmt.Sprintf("clarifying_%d", n) }

// Static clarifying questions per ambiguous role pair.
var clarifyingPairs = map[[2]string]string{
	{RoleIT, RoleFach}:         "Arbeiten Sie mehr mit technischen Systemen und deren Integration oder mit fachlichen Prozessen und deren Bearbeitung?",
	{RoleIT, RoleManagement}:   "Liegt Ihr Fokus eher auf der technischen Umsetzung oder auf strategischen Entscheidungen und Führung?",
	{RoleFach, RoleManagement}: "Beschäftigen Sie sich hauptsächlich mit der operativen Durchführung von Aufgaben oder mit der strategischen Planung und Steuerung?",
}

// FallbackClarifyingQuestion picks the static question for the two leading
// candidates.
func FallbackClarifyingQuestion(candidates []RoleCandidate, n int) *Question {
	a, b := DefaultRole, RoleIT
	if len(candidates) > 0 {
		a = candidates[0].Role
	}
	if len(candidates) > 1 {
		b = candidates[1].Role
	}
	text, ok := clarifyingPairs[[2]string{a, b}]
	if !ok {
		text, ok = clarifyingPairs[[2]string{b, a}]
	}
	if !ok {
		text = "Beschreiben Sie bitte genauer, worin der Schwerpunkt Ihrer täglichen Arbeit liegt."
	}
	return &Question{
		ID:       clarifyingID(n),
		Text:     text,
		Type:     QuestionFreeText,
		Required: true,
	}
}

const fieldPrompt = `Du bist ein Experte für Prozessanalyse und führst ein strukturiertes Interview mit einer Person der Rolle "%s". Formuliere genau EINE verständliche Frage, die das angegebene Fragebogen-Feld beantwortet. Halte die Frage auf mittlerem Detailniveau und berücksichtige die letzten Antworten für präzisere Formulierungen. Wenn Dokumentenkontext mitgegeben ist, beziehe dich auf die dokumentierten Prozesse.

Antworte AUSSCHLIESSLICH als JSON:
{"question":{"id":"%s","text":"Die Frage","type":"free_text","required":true,"hint":""}}`

// GenerateFieldQuestion produces role-phase question number n for one schema
// field. docContext carries retrieved snippets when the context policy
// allowed them, empty otherwise.
func (g *Generator) GenerateFieldQuestion(ctx context.Context, role string, field *schema.Field, n int, transcript []QA, docContext string, onChunk func(string)) (*Question, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("no completion client configured")
	}
	input := map[string]any{
		"feld":       field.ID,
		"thema":      field.ThemeName,
		"leitfrage":  field.Question,
		"hinweis":    field.Hint,
		"transcript": tailQA(transcript, 2),
		"dokumente":  docContext,
	}
	raw, err := g.generate(ctx, fmt.Sprintf(fieldPrompt, role, fieldQuestionID(role, n)), input, onChunk)
	if err != nil {
		return nil, err
	}
	q, err := parseSingleQuestion(raw)
	if err != nil {
		return nil, err
	}
	attachField(q, field, role, n)
	return q, nil
}

// FallbackFieldQuestion asks the schema's own question text verbatim.
func FallbackFieldQuestion(role string, field *schema.Field, n int) *Question {
	q := &Question{
		Text:     field.Question,
		Type:     QuestionFreeText,
		Required: field.Required,
		Hint:     field.Hint,
	}
	attachField(q, field, role, n)
	return q
}

// fieldQuestionID numbers role questions per issue, so a re-asked field
// (e.g. after an empty answer) gets a fresh question id instead of reissuing
// an already-answered one.
func fieldQuestionID(role string, n int) string {
	return fmt.Sprintf("role_%s_q%d", role, n)
}

func attachField(q *Question, field *schema.Field, role string, n int) {
	q.ID = fieldQuestionID(role, n)
	q.FieldID = field.ID
	q.ThemeID = field.ThemeID
	q.ThemeName = field.ThemeName
}

func tailQA(transcript []QA, n int) []QA {
	if len(transcript) <= n {
		return transcript
	}
	return transcript[len(transcript)-n:]
}

type questionEnvelope struct {
	Question *Question `json:"question"`
}

// parseSingleQuestion unwraps {"question": {...}} and normalizes the result.
func parseSingleQuestion(raw json.RawMessage) (*Question, error) {
	var env questionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	q := env.Question
	if q == nil || strings.TrimSpace(q.Text) == "" {
		return nil, llmclient.ErrInvalidJSON
	}
	q.ID = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(q.ID), " ", "_"))
	if q.ID == "" {
		return nil, llmclient.ErrInvalidJSON
	}
	switch q.Type {
	case QuestionFreeText, QuestionYesNo:
	default:
		q.Type = QuestionFreeText
	}
	if q.Type == QuestionYesNo && len(q.Options) == 0 {
		q.Options = []string{"Ja", "Nein"}
	}
	q.Required = true
	return q, nil
}
