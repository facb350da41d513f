package interview

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"sort"
	"strings"

	"elicit/internal/llmclient"
)

// Respondent roles. RoleFach is the hard-coded default when classification
// cannot produce any candidate.
const (
	RoleIT         = "it"
	RoleFach       = "fach"
	RoleManagement = "management"

	DefaultRole = RoleFach
)

// ConfidenceThreshold is the minimum top score for direct role acceptance.
// A score exactly at the threshold meets it (closed interval).
const ConfidenceThreshold = 0.70

const contradictionPenalty = 0.10

var allRoles = []string{RoleIT, RoleFach, RoleManagement}

// RoleCandidate is one weighted classification outcome. Candidates are
// transient: they survive only until the next classification attempt.
type RoleCandidate struct {
	Role  string  `json:"role"`
	Score float64 `json:"score"`
}

// Classification is the result of one classify call.
type Classification struct {
	Candidates    []RoleCandidate `json:"candidates"`
	LowConfidence bool            `json:"low_confidence"`
	Explain       string          `json:"explain,omitempty"`
	Source        string          `json:"source,omitempty"`
}

// Top returns the leading candidate, nil when there is none.
func (c Classification) Top() *RoleCandidate {
	if len(c.Candidates) == 0 {
		return nil
	}
	return &c.Candidates[0]
}

// Classifier assigns a role from intake answers. When a completion client is
// configured it is asked first, with the weighted rubric encoded in the
// prompt; its reply is normalized and never trusted blindly. On any failure
// the deterministic local scorer applies the same five-signal model, so
// classification degrades rather than erroring out.
type Classifier struct {
	llm llmclient.Client
}

func NewClassifier(llm llmclient.Client) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, answers map[string]string) Classification {
	if c.llm != nil {
		if cls, err := c.classifyLLM(ctx, answers); err == nil && len(cls.Candidates) > 0 {
			return cls
		} else if err != nil {
			log.Printf("classifier: llm classification failed, using local scorer: %v", err)
		}
	}
	return c.scoreLocal(answers)
}

// Five signal categories with fixed weights summing to 1.0. Each category is
// credited entirely to the role it most strongly implies.
const (
	weightDiscriminator = 0.40
	weightTitle         = 0.30
	weightTasks         = 0.15
	weightProblems      = 0.10
	weightSuccess       = 0.05
)

// Question-id fragments that locate each signal category in the answers.
var (
	discriminatorIDs = map[string][]string{
		RoleIT:         {"technical_responsibility", "discriminator_it", "technik"},
		RoleFach:       {"operational_decisions", "discriminator_fach", "operativ"},
		RoleManagement: {"project_leadership", "discriminator_mgmt", "discriminator_management"},
	}
	titleIDs   = []string{"role", "rolle", "function", "funktion"}
	taskIDs    = []string{"task", "aufgabe"}
	problemIDs = []string{"problem", "challenge", "herausforderung"}
	successIDs = []string{"success", "erfolg", "metric", "messung"}
)

var (
	titleKeywords = map[string][]string{
		RoleIT:         {"admin", "entwickler", "developer", "devops", "architekt", "architect", "system", "engineer", "informatik"},
		RoleFach:       {"sachbearbeit", "fachbereich", "fachabteilung", "bearbeitung", "clerk", "spezialist"},
		RoleManagement: {"leiter", "manager", "führung", "fuehrung", "projektleit", "chef", "head", "lead", "geschäftsführ", "geschaeftsfuehr"},
	}
	taskKeywords = map[string][]string{
		RoleIT:         {"server", "api", "code", "deployment", "schnittstelle", "entwickl", "administr", "infrastruktur"},
		RoleFach:       {"bearbeitung", "prüfung", "pruefung", "ticket", "workflow", "bestellung", "dokument"},
		RoleManagement: {"planung", "budget", "strategie", "steuerung", "führung", "fuehrung", "verantwortung für das team"},
	}
	problemKeywords = map[string][]string{
		RoleIT:         {"ausfall", "integration", "performance", "schnittstelle", "security", "sicherheitslücke"},
		RoleFach:       {"fehler", "rückfrage", "rueckfrage", "arbeitslast", "manuell"},
		RoleManagement: {"verzögerung", "verzoegerung", "transparenz", "budget", "ressourc"},
	}
	successKeywords = map[string][]string{
		RoleIT:         {"verfügbarkeit", "verfuegbarkeit", "performance", "automatisier", "stabilität", "stabilitaet", "uptime"},
		RoleFach:       {"bearbeitungszeit", "fehlerquote", "kundenzufriedenheit"},
		RoleManagement: {"kosten", "roi", "durchlauf", "umsatz"},
	}
)

// scoreLocal applies the deterministic weighted model.
func (c *Classifier) scoreLocal(answers map[string]string) Classification {
	scores := map[string]float64{RoleIT: 0, RoleFach: 0, RoleManagement: 0}
	contradiction := false

	// Category 1: yes/no discriminator answers.
	var yesRoles []string
	for _, role := range allRoles {
		for id, answer := range answers {
			if !isYes(answer) || !idMatches(id, discriminatorIDs[role]) {
				continue
			}
			yesRoles = append(yesRoles, role)
			break
		}
	}
	discRole := ""
	if len(yesRoles) > 0 {
		discRole = yesRoles[0]
		scores[discRole] += weightDiscriminator
		if len(yesRoles) > 1 {
			contradiction = true
		}
	}

	// Categories 2-5: keyword matches in the respective intake answers.
	titleRole := creditCategory(scores, answers, titleIDs, titleKeywords, weightTitle)
	creditCategory(scores, answers, taskIDs, taskKeywords, weightTasks)
	creditCategory(scores, answers, problemIDs, problemKeywords, weightProblems)
	creditCategory(scores, answers, successIDs, successKeywords, weightSuccess)

	// Contradictory signals (e.g. technical title with a managerial "yes")
	// reduce every candidate instead of cancelling each other, which biases
	// toward a clarification round.
	if discRole != "" && titleRole != "" && discRole != titleRole {
		contradiction = true
	}
	if contradiction {
		for role := range scores {
			scores[role] = math.Max(0, scores[role]-contradictionPenalty)
		}
	}

	candidates := rankScores(scores)
	if candidates[0].Score == 0 {
		return fallbackClassification()
	}
	return Classification{
		Candidates:    candidates,
		LowConfidence: candidates[0].Score < ConfidenceThreshold,
		Source:        "local",
	}
}

// creditCategory awards weight to the role with the most keyword hits in the
// answers belonging to the category. Ties and zero hits award nothing.
// Returns the credited role, "" when none.
func creditCategory(scores map[string]float64, answers map[string]string, idFragments []string, keywords map[string][]string, weight float64) string {
	var text strings.Builder
	for id, answer := range answers {
		if idMatches(id, idFragments) {
			text.WriteString(strings.ToLower(answer))
			text.WriteString(" ")
		}
	}
	if text.Len() == 0 {
		return ""
	}
	haystack := text.String()

	best, bestHits, tie := "", 0, false
	for _, role := range allRoles {
		hits := 0
		for _, kw := range keywords[role] {
			if strings.Contains(haystack, kw) {
				hits++
			}
		}
		switch {
		case hits > bestHits:
			best, bestHits, tie = role, hits, false
		case hits == bestHits && hits > 0:
			tie = true
		}
	}
	if best == "" || tie {
		return ""
	}
	scores[best] += weight
	return best
}

func idMatches(id string, fragments []string) bool {
	id = strings.ToLower(id)
	for _, f := range fragments {
		if strings.Contains(id, f) {
			return true
		}
	}
	return false
}

func rankScores(scores map[string]float64) []RoleCandidate {
	out := make([]RoleCandidate, 0, len(scores))
	for _, role := range allRoles {
		out = append(out, RoleCandidate{Role: role, Score: round2(clamp01(scores[role]))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// fallbackClassification is the uniform distribution used when no signal is
// available at all.
func fallbackClassification() Classification {
	return Classification{
		Candidates: []RoleCandidate{
			{Role: RoleFach, Score: 0.4},
			{Role: RoleIT, Score: 0.3},
			{Role: RoleManagement, Score: 0.3},
		},
		LowConfidence: true,
		Explain:       "Automatische Klassifikation ohne Signal, Standardverteilung verwendet",
		Source:        "fallback",
	}
}

const classifyPrompt = `Du bist ein Experte für Organisationsanalyse. Klassifiziere die Rolle einer Person in einem Automatisierungsprojekt anhand ihrer Interview-Antworten.

Rollen: "it" (technische Verantwortliche), "fach" (Fachabteilung/Sachbearbeiter), "management" (Führungskräfte).

Gewichtung:
- Ja/Nein-Diskriminatorfragen: +0.40 für die implizierte Rolle
- Schlüsselwörter in der Rollenbezeichnung: +0.30
- Schlüsselwörter in Aufgaben/Verantwortung: +0.15
- Schlüsselwörter in Problemen/Herausforderungen: +0.10
- Schlüsselwörter in der Erfolgsmessung: +0.05
Bei widersprüchlichen Antworten reduziere alle Scores um 0.10.

Antworte AUSSCHLIESSLICH als JSON:
{"candidates":[{"role":"it|fach|management","score":0.0}],"explain":"kurze Begründung"}
Gib immer alle drei Rollen zurück, sortiert nach Score absteigend.`

type llmClassification struct {
	Candidates []struct {
		Role  string          `json:"role"`
		Score json.RawMessage `json:"score"`
	} `json:"candidates"`
	Explain string `json:"explain"`
}

func (c *Classifier) classifyLLM(ctx context.Context, answers map[string]string) (Classification, error) {
	raw, err := c.llm.GenerateJSON(ctx, classifyPrompt, formatAnswers(answers))
	if err != nil {
		return Classification{}, err
	}
	var parsed llmClassification
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Classification{}, err
	}
	loose := make([]RoleCandidate, 0, len(parsed.Candidates))
	for _, cand := range parsed.Candidates {
		var score float64
		// Non-numeric scores are normalized to zero, not propagated as errors.
		_ = json.Unmarshal(cand.Score, &score)
		loose = append(loose, RoleCandidate{Role: cand.Role, Score: score})
	}
	candidates := NormalizeCandidates(loose)
	if len(candidates) == 0 {
		return Classification{}, llmclient.ErrInvalidJSON
	}
	return Classification{
		Candidates:    candidates,
		LowConfidence: candidates[0].Score < ConfidenceThreshold,
		Explain:       strings.TrimSpace(parsed.Explain),
		Source:        "llm",
	}, nil
}

// NormalizeCandidates repairs a candidate list from an untrusted source:
// unknown role labels map to the default role, scores are clamped to [0,1],
// duplicates keep their highest score, and the result is ranked descending
// with every known role present.
func NormalizeCandidates(in []RoleCandidate) []RoleCandidate {
	if len(in) == 0 {
		return nil
	}
	scores := map[string]float64{RoleIT: 0, RoleFach: 0, RoleManagement: 0}
	for _, cand := range in {
		role := strings.ToLower(strings.TrimSpace(cand.Role))
		if _, ok := scores[role]; !ok {
			role = DefaultRole
		}
		score := clamp01(cand.Score)
		if score > scores[role] {
			scores[role] = score
		}
	}
	return rankScores(scores)
}

func formatAnswers(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for id, answer := range answers {
		readable := strings.ReplaceAll(id, "_", " ")
		out[readable] = answer
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
