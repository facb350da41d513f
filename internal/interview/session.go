package interview

import (
	"strings"
	"sync"
)

// Phase of one interview instance. Transitions only run intake -> role_specific;
// a fresh instance (after archive-and-restart) starts over at intake.
type Phase string

const (
	PhaseIntake       Phase = "intake"
	PhaseRoleSpecific Phase = "role_specific"
)

// QuestionType distinguishes open questions from yes/no discriminators.
type QuestionType string

const (
	QuestionFreeText QuestionType = "free_text"
	QuestionYesNo    QuestionType = "yes_no"
)

// Question is immutable once issued; the answer is recorded by ID.
// FieldID/ThemeName are set only for role-phase questions.
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options,omitempty"`
	Required  bool         `json:"required"`
	Hint      string       `json:"hint,omitempty"`
	FieldID   string       `json:"field_id,omitempty"`
	ThemeID   string       `json:"theme_id,omitempty"`
	ThemeName string       `json:"theme_name,omitempty"`
}

// UploadedFile records a document uploaded for this respondent.
type UploadedFile struct {
	Name string `json:"filename"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// ArchivedInterview is a completed interview in miniature, kept when the
// respondent starts over with another role.
type ArchivedInterview struct {
	Role              string            `json:"role"`
	Answers           map[string]string `json:"answers"`
	SchemaFields      map[string]string `json:"schema_fields"`
	RoleConfidenceLow bool              `json:"role_confidence_low,omitempty"`
	Partial           bool              `json:"partial,omitempty"`
}

// Session is the root aggregate for one respondent engagement. It is mutated
// exclusively by the Engine (and Archive below); handlers serialize turns via
// Lock/Unlock so a racing duplicate submit cannot corrupt it.
type Session struct {
	ID                  string            `json:"session_id"`
	Name                string            `json:"session_name,omitempty"`
	Phase               Phase             `json:"phase"`
	Answers             map[string]string `json:"answers"`
	Role                string            `json:"role,omitempty"`
	RoleConfidenceLow   bool              `json:"role_confidence_low,omitempty"`
	RoleCandidates      []RoleCandidate   `json:"role_candidates,omitempty"`
	IntakeQuestions     []Question        `json:"intake_questions"`
	RoleQuestions       []Question        `json:"role_questions"`
	ClarifyingQuestions []Question        `json:"clarifying_questions,omitempty"`
	SchemaFields        map[string]string `json:"schema_fields"`
	CompletedInterviews []ArchivedInterview `json:"completed_interviews,omitempty"`
	UploadedFiles       []UploadedFile    `json:"uploaded_files,omitempty"`
	Partial             bool              `json:"partial,omitempty"`

	mu sync.Mutex
}

// NewSession creates an empty session in the intake phase.
func NewSession(id string) *Session {
	return &Session{
		ID:           id,
		Phase:        PhaseIntake,
		Answers:      make(map[string]string),
		SchemaFields: make(map[string]string),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// normalize repairs nil maps after a JSON round trip.
func (s *Session) normalize() {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	if s.SchemaFields == nil {
		s.SchemaFields = make(map[string]string)
	}
	if s.Phase == "" {
		s.Phase = PhaseIntake
	}
}

// Archive appends the current interview to CompletedInterviews and resets the
// session to a fresh intake instance. Uploaded documents and prior archives
// survive the reset.
func (s *Session) Archive() {
	answers := make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	fields := make(map[string]string, len(s.SchemaFields))
	for k, v := range s.SchemaFields {
		fields[k] = v
	}
	s.CompletedInterviews = append(s.CompletedInterviews, ArchivedInterview{
		Role:              s.Role,
		Answers:           answers,
		SchemaFields:      fields,
		RoleConfidenceLow: s.RoleConfidenceLow,
		Partial:           s.Partial,
	})

	s.Phase = PhaseIntake
	s.Answers = make(map[string]string)
	s.Role = ""
	s.RoleConfidenceLow = false
	s.RoleCandidates = nil
	s.IntakeQuestions = nil
	s.RoleQuestions = nil
	s.ClarifyingQuestions = nil
	s.SchemaFields = make(map[string]string)
	s.Partial = false
}

// AnsweredCount counts recorded answers including clarifying ones.
func (s *Session) AnsweredCount() int { return len(s.Answers) }

// Issued reports whether a question with this id has been asked in the
// current interview instance. Answers are only accepted for issued ids.
func (s *Session) Issued(questionID string) bool {
	for _, seq := range [][]Question{s.IntakeQuestions, s.ClarifyingQuestions, s.RoleQuestions} {
		for i := range seq {
			if seq[i].ID == questionID {
				return true
			}
		}
	}
	return false
}

func firstUnanswered(questions []Question, answers map[string]string) *Question {
	for i := range questions {
		if _, ok := answers[questions[i].ID]; !ok {
			return &questions[i]
		}
	}
	return nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "ja", "yes", "y", "true", "1":
		return true
	}
	return false
}
