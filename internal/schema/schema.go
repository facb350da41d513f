package schema

// Field is one answerable slot of a role questionnaire. Fields are immutable
// after load; ThemeID/ThemeName are filled in during flattening.
type Field struct {
	ID          string   `yaml:"id" json:"id"`
	Question    string   `yaml:"question" json:"question"`
	Hint        string   `yaml:"hint,omitempty" json:"hint,omitempty"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Conditional string   `yaml:"conditional,omitempty" json:"conditional,omitempty"`

	ThemeID   string `yaml:"-" json:"-"`
	ThemeName string `yaml:"-" json:"-"`

	cond *Condition
}

// Condition returns the parsed conditional predicate, nil for unconditional fields.
func (f *Field) Condition() *Condition { return f.cond }

// Theme groups related fields. Declaration order is significant: the engine
// walks themes and fields in the order they appear in the schema file.
type Theme struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// CompletionCriteria are extra completion gates a schema may declare on top
// of "all required fields filled".
type CompletionCriteria struct {
	MinimumRequiredFields int      `yaml:"minimum_required_fields,omitempty" json:"minimum_required_fields,omitempty"`
	RequiredThemes        []string `yaml:"required_themes,omitempty" json:"required_themes,omitempty"`
}

// RoleSchema is the declarative questionnaire for one role.
type RoleSchema struct {
	Role       string             `yaml:"role" json:"role"`
	RoleName   string             `yaml:"role_name" json:"role_name"`
	Themes     []Theme            `yaml:"themes" json:"themes"`
	Completion CompletionCriteria `yaml:"completion_criteria,omitempty" json:"completion_criteria,omitempty"`
}
