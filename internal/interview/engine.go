package interview

import (
	"context"
	"fmt"
	"log"
	"strings"

	"elicit/internal/schema"
)

const (
	// ClarifyingCap bounds clarification rounds across the whole intake phase.
	ClarifyingCap = 3
	// RoleQuestionCap stops generation when the schema can never be
	// satisfied; reaching it forces completion with a partial marker.
	RoleQuestionCap = 20
)

// Engine owns the two-phase interview state machine. It keeps no state of its
// own: every call operates on the caller-supplied session, appends to its
// ordered question sequences and never mutates or removes an issued question.
type Engine struct {
	registry   *schema.Registry
	classifier *Classifier
	generator  *Generator
	retriever  Retriever
}

func NewEngine(registry *schema.Registry, classifier *Classifier, generator *Generator, retriever Retriever) *Engine {
	return &Engine{
		registry:   registry,
		classifier: classifier,
		generator:  generator,
		retriever:  retriever,
	}
}

// RecordAnswer stores the raw answer under the question id. Role-phase
// answers also fill the schema field the question was minted for.
func (e *Engine) RecordAnswer(s *Session, questionID, answer string) {
	s.normalize()
	s.Answers[questionID] = answer
	for i := range s.RoleQuestions {
		if s.RoleQuestions[i].ID == questionID && s.RoleQuestions[i].FieldID != "" {
			s.SchemaFields[s.RoleQuestions[i].FieldID] = strings.TrimSpace(answer)
			return
		}
	}
}

// PresetRole skips intake entirely and opens the role phase for a known
// role. Unknown roles are ignored.
func (e *Engine) PresetRole(s *Session, role string) {
	if e.registry.Schema(role) == nil {
		log.Printf("engine: preset role %q unknown, starting with intake", role)
		return
	}
	s.normalize()
	s.Role = role
	s.Phase = PhaseRoleSpecific
}

// NextQuestion advances the interview by one turn and returns the question to
// ask, or nil when the current interview instance is complete. Re-invoking it
// while a question is outstanding returns that same question unchanged, so a
// client retry after a transport failure replays instead of duplicating.
func (e *Engine) NextQuestion(ctx context.Context, s *Session) *Question {
	return e.NextQuestionStream(ctx, s, nil)
}

// NextQuestionStream behaves like NextQuestion but additionally relays
// partial generation text through onChunk while a question is being
// produced. The state transition still happens exactly once, after the
// generation call completes; replayed questions emit no chunks. onChunk
// may be nil.
func (e *Engine) NextQuestionStream(ctx context.Context, s *Session, onChunk func(string)) *Question {
	s.normalize()

	if s.Phase == PhaseIntake {
		if q := e.nextIntakeQuestion(ctx, s, onChunk); q != nil {
			return q
		}
		if s.Phase == PhaseIntake {
			// Classification did not finish the phase (clarifying round).
			return nil
		}
	}
	return e.nextRoleQuestion(ctx, s, onChunk)
}

func (e *Engine) nextIntakeQuestion(ctx context.Context, s *Session, onChunk func(string)) *Question {
	if q := firstUnanswered(s.IntakeQuestions, s.Answers); q != nil {
		return q
	}
	if q := firstUnanswered(s.ClarifyingQuestions, s.Answers); q != nil {
		return q
	}

	if len(s.IntakeQuestions) < IntakeQuota {
		index := len(s.IntakeQuestions) + 1
		q, err := e.generator.GenerateIntakeQuestion(ctx, index, e.transcript(s), onChunk)
		if err != nil {
			log.Printf("engine: intake question %d generation failed, using static fallback: %v", index, err)
			q = FallbackIntakeQuestion(index)
		}
		ensureUniqueID(q, index, s.Answers, s.IntakeQuestions)
		s.IntakeQuestions = append(s.IntakeQuestions, *q)
		return &s.IntakeQuestions[len(s.IntakeQuestions)-1]
	}

	// Quota reached, all intake and clarifying questions answered.
	e.classify(ctx, s, onChunk)
	if s.Phase == PhaseIntake {
		// Still unclear; a clarifying question was appended.
		return firstUnanswered(s.ClarifyingQuestions, s.Answers)
	}
	return nil
}

// classify runs the role classifier and either transitions the session into
// the role phase or appends one clarifying question. After ClarifyingCap
// rounds the top candidate is accepted regardless of score.
func (e *Engine) classify(ctx context.Context, s *Session, onChunk func(string)) {
	result := e.classifier.Classify(ctx, s.Answers)
	s.RoleCandidates = result.Candidates

	top := result.Top()
	if top == nil {
		log.Printf("engine: classification produced no candidate, assigning default role %q", DefaultRole)
		s.Role = DefaultRole
		s.RoleConfidenceLow = true
		s.Phase = PhaseRoleSpecific
		return
	}
	if top.Score >= ConfidenceThreshold {
		s.Role = top.Role
		s.RoleConfidenceLow = false
		s.Phase = PhaseRoleSpecific
		log.Printf("engine: role %q classified with score %.2f", top.Role, top.Score)
		return
	}

	if len(s.ClarifyingQuestions) < ClarifyingCap {
		n := len(s.ClarifyingQuestions) + 1
		q, err := e.generator.GenerateClarifyingQuestion(ctx, result.Candidates, n, onChunk)
		if err != nil {
			log.Printf("engine: clarifying question generation failed, using static fallback: %v", err)
			q = FallbackClarifyingQuestion(result.Candidates, n)
		}
		s.ClarifyingQuestions = append(s.ClarifyingQuestions, *q)
		return
	}

	// Clarification budget exhausted: accept the leader, flag the doubt.
	s.Role = top.Role
	s.RoleConfidenceLow = true
	s.Phase = PhaseRoleSpecific
	log.Printf("engine: accepting role %q below threshold (score %.2f)", top.Role, top.Score)
}

func (e *Engine) nextRoleQuestion(ctx context.Context, s *Session, onChunk func(string)) *Question {
	if s.Role == "" {
		return nil
	}
	if q := firstUnanswered(s.RoleQuestions, s.Answers); q != nil {
		return q
	}

	progress := e.registry.Progress(s.Role, s.SchemaFields)
	if progress.Complete {
		return nil
	}
	if len(s.RoleQuestions) >= RoleQuestionCap {
		log.Printf("engine: role question cap reached for session %s, forcing partial completion", s.ID)
		s.Partial = true
		return nil
	}

	field := e.registry.NextMissingField(s.Role, s.SchemaFields)
	if field == nil {
		return nil
	}

	docContext := ""
	if ShouldAttachContext(field.ThemeID, field.Hint+" "+field.Question) {
		docContext = BuildContext(ctx, e.retriever, field.Question)
	}

	n := len(s.RoleQuestions) + 1
	q, err := e.generator.GenerateFieldQuestion(ctx, s.Role, field, n, e.transcript(s), docContext, onChunk)
	if err != nil {
		log.Printf("engine: question generation for field %s failed, using schema question: %v", field.ID, err)
		q = FallbackFieldQuestion(s.Role, field, n)
	}
	s.RoleQuestions = append(s.RoleQuestions, *q)
	return &s.RoleQuestions[len(s.RoleQuestions)-1]
}

// ensureUniqueID keeps generated intake ids from colliding with an already
// issued question: a collision first falls back to the static catalog id for
// the index, then to an index suffix.
func ensureUniqueID(q *Question, index int, answers map[string]string, issued []Question) {
	taken := func(id string) bool {
		if _, ok := answers[id]; ok {
			return true
		}
		for i := range issued {
			if issued[i].ID == id {
				return true
			}
		}
		return false
	}
	if !taken(q.ID) {
		return
	}
	if fb := FallbackIntakeQuestion(index); fb != nil && !taken(fb.ID) {
		q.ID = fb.ID
		return
	}
	q.ID = fmt.Sprintf("%s_%d", q.ID, index)
}

// transcript flattens the issued questions and their answers in issue order.
func (e *Engine) transcript(s *Session) []QA {
	var out []QA
	for _, seq := range [][]Question{s.IntakeQuestions, s.ClarifyingQuestions, s.RoleQuestions} {
		for _, q := range seq {
			answer, ok := s.Answers[q.ID]
			if !ok {
				continue
			}
			out = append(out, QA{Question: q.Text, Answer: answer})
		}
	}
	return out
}

// Progress exposes the tracker for the session's current role.
func (e *Engine) Progress(s *Session) schema.Report {
	if s.Role == "" {
		return schema.Report{MissingRequired: []string{}}
	}
	return e.registry.Progress(s.Role, s.SchemaFields)
}
