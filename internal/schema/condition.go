package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a conditional-field operator.
type Op int

const (
	OpEq Op = iota
	OpContains
	OpGTE
	OpLT
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpContains:
		return "contains"
	case OpGTE:
		return ">="
	case OpLT:
		return "<"
	}
	return "?"
}

// Condition is a conditional-field predicate, parsed once at schema load.
// The left operand names another field; the right operand is a literal.
type Condition struct {
	Field string
	Op    Op
	Value string

	// invalid marks conditions whose referenced field does not exist in the
	// schema. They evaluate to false so the field never becomes required.
	invalid bool
}

// ParseCondition parses expressions of the form
//
//	field == 'value'
//	field contains 'value'
//	field >= 3
//	field < 3
func ParseCondition(expr string) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty condition")
	}
	for _, probe := range []struct {
		sep string
		op  Op
	}{
		{" contains ", OpContains},
		{" >= ", OpGTE},
		{" == ", OpEq},
		{" < ", OpLT},
	} {
		idx := strings.Index(expr, probe.sep)
		if idx < 0 {
			continue
		}
		field := strings.TrimSpace(expr[:idx])
		value := strings.Trim(strings.TrimSpace(expr[idx+len(probe.sep):]), `'"`)
		if field == "" || value == "" {
			return nil, fmt.Errorf("malformed condition %q", expr)
		}
		if probe.op == OpGTE || probe.op == OpLT {
			if _, err := strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("condition %q: numeric literal required: %w", expr, err)
			}
		}
		return &Condition{Field: field, Op: probe.op, Value: value}, nil
	}
	return nil, fmt.Errorf("unsupported condition %q", expr)
}

// Eval evaluates the condition against the currently filled fields. Filled
// values are raw answer strings; numeric comparisons parse them leniently and
// fail closed.
func (c *Condition) Eval(filled map[string]string) bool {
	if c == nil || c.invalid {
		return false
	}
	got, ok := filled[c.Field]
	switch c.Op {
	case OpContains:
		return ok && strings.Contains(strings.ToLower(got), strings.ToLower(c.Value))
	case OpEq:
		return ok && strings.EqualFold(strings.TrimSpace(got), c.Value)
	case OpGTE, OpLT:
		if !ok {
			return false
		}
		n, err := strconv.Atoi(strings.TrimSpace(got))
		if err != nil {
			return false
		}
		threshold, _ := strconv.Atoi(c.Value)
		if c.Op == OpGTE {
			return n >= threshold
		}
		return n < threshold
	}
	return false
}
