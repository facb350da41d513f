package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultSchemas embed.FS

// Registry holds the loaded role schemas. It is immutable after construction
// and safe for concurrent readers.
type Registry struct {
	schemas map[string]*RoleSchema
}

// Load reads every role_schema_*.yaml / role_schema_*.json file in dir.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	r := &Registry{schemas: make(map[string]*RoleSchema)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "role_schema_") {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := r.add(name, data); err != nil {
			return nil, err
		}
	}
	if len(r.schemas) == 0 {
		return nil, fmt.Errorf("no role schemas found in %s", dir)
	}
	return r, nil
}

// LoadDefault builds a registry from the schemas compiled into the binary.
func LoadDefault() (*Registry, error) {
	entries, err := defaultSchemas.ReadDir("defaults")
	if err != nil {
		return nil, err
	}
	r := &Registry{schemas: make(map[string]*RoleSchema)}
	for _, e := range entries {
		data, err := defaultSchemas.ReadFile("defaults/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := r.add(e.Name(), data); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromSchemas builds a registry from in-memory schema definitions.
func FromSchemas(schemas ...*RoleSchema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*RoleSchema)}
	for _, s := range schemas {
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		if err := r.add(s.Role, raw); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(name string, data []byte) error {
	var s RoleSchema
	if strings.HasSuffix(name, ".json") || (len(data) > 0 && data[0] == '{') {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parse schema %s: %w", name, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parse schema %s: %w", name, err)
		}
	}
	if strings.TrimSpace(s.Role) == "" {
		return fmt.Errorf("schema %s: missing role", name)
	}
	if err := prepare(&s); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	r.schemas[s.Role] = &s
	return nil
}

// prepare attaches theme info to every field and parses conditions once.
// Conditions referencing unknown fields are logged and disabled rather than
// rejected, so a single sloppy schema entry cannot block the interview.
func prepare(s *RoleSchema) error {
	known := make(map[string]bool)
	for _, t := range s.Themes {
		for _, f := range t.Fields {
			known[f.ID] = true
		}
	}
	for ti := range s.Themes {
		t := &s.Themes[ti]
		for fi := range t.Fields {
			f := &t.Fields[fi]
			if f.ID == "" {
				return fmt.Errorf("theme %s: field without id", t.ID)
			}
			f.ThemeID = t.ID
			f.ThemeName = t.Name
			if f.Type == "" {
				f.Type = "text"
			}
			if f.Conditional == "" {
				continue
			}
			cond, err := ParseCondition(f.Conditional)
			if err != nil {
				log.Printf("schema %s: field %s: %v; treating condition as never true", s.Role, f.ID, err)
				f.cond = &Condition{invalid: true}
				continue
			}
			if !known[cond.Field] {
				log.Printf("schema %s: field %s: condition references unknown field %q; treating as never true", s.Role, f.ID, cond.Field)
				cond.invalid = true
			}
			f.cond = cond
		}
	}
	return nil
}

// Roles lists the roles the registry knows about.
func (r *Registry) Roles() []string {
	roles := make([]string, 0, len(r.schemas))
	for role := range r.schemas {
		roles = append(roles, role)
	}
	return roles
}

// Schema returns the schema for role, nil when unknown.
func (r *Registry) Schema(role string) *RoleSchema {
	return r.schemas[role]
}

// AllFields returns every field of the role flattened in declaration order.
func (r *Registry) AllFields(role string) []*Field {
	s := r.schemas[role]
	if s == nil {
		return nil
	}
	var out []*Field
	for ti := range s.Themes {
		t := &s.Themes[ti]
		for fi := range t.Fields {
			out = append(out, &t.Fields[fi])
		}
	}
	return out
}

// isRequired reports whether the field currently counts as required, taking
// its condition (re-evaluated against filled on every call) into account.
func isRequired(f *Field, filled map[string]string) bool {
	if !f.Required {
		return false
	}
	if f.cond != nil {
		return f.cond.Eval(filled)
	}
	return true
}

// NextMissingField selects the next field the interview should ask about:
// required (and condition-active) fields first, then optional ones, both in
// theme-declaration order. Returns nil when nothing is missing.
func (r *Registry) NextMissingField(role string, filled map[string]string) *Field {
	fields := r.AllFields(role)
	for _, f := range fields {
		if filledValue(filled, f.ID) {
			continue
		}
		if isRequired(f, filled) {
			return f
		}
	}
	for _, f := range fields {
		if filledValue(filled, f.ID) {
			continue
		}
		if f.cond != nil && !f.cond.Eval(filled) {
			continue
		}
		return f
	}
	return nil
}

func filledValue(filled map[string]string, id string) bool {
	v, ok := filled[id]
	return ok && strings.TrimSpace(v) != ""
}
