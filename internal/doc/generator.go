// Package doc turns a finished interview into a structured process
// description in Markdown.
package doc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"elicit/internal/interview"
	"elicit/internal/llmclient"
)

// Generator renders a role-tailored process document from the interview
// transcript. When no model is available (or it fails) it falls back to a
// plain transcript rendering so the endpoint always returns something.
type Generator struct {
	llm llmclient.Client
}

func NewGenerator(llm llmclient.Client) *Generator {
	return &Generator{llm: llm}
}

var sectionHeadings = []string{
	"Prozessziel",
	"Trigger / Ausloeser",
	"Eingangsdaten",
	"Beteiligte Systeme",
	"Ausgabedaten / Empfaenger",
	"Architektur und Schnittstellen",
	"Sicherheit und Genehmigungen",
	"Betrieb und Monitoring",
}

const renderPrompt = `Du bist Experte fuer Prozessdokumentation.
Erstelle aus dem Interview-Transkript eine strukturierte Prozessdokumentation in Markdown.

Regeln:
1. Verwende nur Informationen, die im Interview genannt wurden.
2. Erfinde keine Details. Fehlende Punkte heissen "Nicht spezifiziert" oder entfallen.
3. Kompakt halten, maximal 2-3 Saetze pro Abschnitt, Bulletpoints bevorzugen.
4. Gliedere nach den vorgegebenen Abschnitten.

Antworte als JSON-Objekt: {"document": "<markdown>"}`

// Render produces the document for one session. The session must be locked
// by the caller.
func (g *Generator) Render(ctx context.Context, s *interview.Session) string {
	transcript := transcript(s)
	if g != nil && g.llm != nil && transcript != "" {
		input := map[string]any{
			"role":       s.Role,
			"sections":   sectionHeadings,
			"transcript": transcript,
		}
		raw, err := g.llm.GenerateJSON(ctx, renderPrompt, input)
		if err == nil {
			var out struct {
				Document string `json:"document"`
			}
			if jerr := json.Unmarshal(raw, &out); jerr == nil && strings.TrimSpace(out.Document) != "" {
				return strings.TrimSpace(out.Document)
			}
		} else {
			log.Printf("doc: render via %s failed: %v", g.llm.Name(), err)
		}
	}
	return fallbackDocument(s)
}

// fallbackDocument is a deterministic transcript dump grouped by phase.
func fallbackDocument(s *interview.Session) string {
	var b strings.Builder
	b.WriteString("# Prozessdokumentation\n\n")
	if s.Role != "" {
		fmt.Fprintf(&b, "Rolle: %s\n\n", s.Role)
	}

	writeBlock := func(title string, qs []interview.Question) {
		wrote := false
		for _, q := range qs {
			answer := strings.TrimSpace(s.Answers[q.ID])
			if answer == "" {
				answer = "Keine Antwort"
			}
			if !wrote {
				fmt.Fprintf(&b, "## %s\n\n", title)
				wrote = true
			}
			fmt.Fprintf(&b, "**%s**\n%s\n\n", q.Text, answer)
		}
	}
	writeBlock("Allgemeiner Teil", s.IntakeQuestions)
	writeBlock("Rueckfragen", s.ClarifyingQuestions)
	writeBlock("Rollenspezifischer Teil", s.RoleQuestions)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func transcript(s *interview.Session) string {
	var lines []string
	appendQA := func(qs []interview.Question) {
		for _, q := range qs {
			answer := strings.TrimSpace(s.Answers[q.ID])
			if answer == "" {
				answer = "Keine Antwort"
			}
			lines = append(lines, fmt.Sprintf("Frage: %s\nAntwort: %s", q.Text, answer))
		}
	}
	appendQA(s.IntakeQuestions)
	appendQA(s.ClarifyingQuestions)
	appendQA(s.RoleQuestions)
	return strings.Join(lines, "\n\n")
}
