package memory

import (
	"strconv"
	"strings"

	"github.com/voxchat/dialoguekit/errors"
)

// Condition is a compiled milestone condition: comparisons over named
// numeric variables combined with && and ||, where && binds tighter.
//
//	affection >= 80 && conversation_count >= 10
//	trust == 100 || affection == 100
//
// Conditions are compiled once at config load so malformed expressions are
// rejected eagerly instead of silently failing per turn.
type Condition struct {
	source  string
	clauses [][]comparison // OR of AND-groups
}

type comparison struct {
	variable string
	op       string
	value    int
}

var comparisonOps = []string{">=", "<=", "==", "!=", ">", "<"}

// ParseCondition compiles a condition expression.
func ParseCondition(source string) (*Condition, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, errors.InvalidConfig("empty milestone condition")
	}

	var clauses [][]comparison
	for _, orPart := range strings.Split(trimmed, "||") {
		var group []comparison
		for _, andPart := range strings.Split(orPart, "&&") {
			cmp, err := parseComparison(andPart)
			if err != nil {
				return nil, err
			}
			group = append(group, cmp)
		}
		clauses = append(clauses, group)
	}
	return &Condition{source: trimmed, clauses: clauses}, nil
}

// parseComparison reads a single "variable op number" term.
func parseComparison(s string) (comparison, error) {
	term := strings.TrimSpace(s)
	if term == "" {
		return comparison{}, errors.InvalidConfig("empty comparison in milestone condition")
	}

	for _, op := range comparisonOps {
		idx := strings.Index(term, op)
		if idx < 0 {
			continue
		}
		variable := strings.TrimSpace(term[:idx])
		rhs := strings.TrimSpace(term[idx+len(op):])
		if variable == "" {
			return comparison{}, errors.InvalidConfig("comparison missing variable: " + term)
		}
		value, err := strconv.Atoi(rhs)
		if err != nil {
			return comparison{}, errors.InvalidConfig("comparison needs an integer right-hand side: " + term)
		}
		return comparison{variable: variable, op: op, value: value}, nil
	}
	return comparison{}, errors.InvalidConfig("no comparison operator in: " + term)
}

// Eval evaluates the condition over the given variables. Variables absent
// from the map evaluate as 0.
func (c *Condition) Eval(vars map[string]int) bool {
	for _, group := range c.clauses {
		if evalGroup(group, vars) {
			return true
		}
	}
	return false
}

func evalGroup(group []comparison, vars map[string]int) bool {
	for _, cmp := range group {
		if !cmp.eval(vars[cmp.variable]) {
			return false
		}
	}
	return true
}

func (cmp comparison) eval(actual int) bool {
	switch cmp.op {
	case ">=":
		return actual >= cmp.value
	case "<=":
		return actual <= cmp.value
	case ">":
		return actual > cmp.value
	case "<":
		return actual < cmp.value
	case "==":
		return actual == cmp.value
	case "!=":
		return actual != cmp.value
	default:
		return false
	}
}

// Variables returns every variable the condition references, deduplicated.
// Config validation uses this to reject references to unknown names.
func (c *Condition) Variables() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, group := range c.clauses {
		for _, cmp := range group {
			if _, ok := seen[cmp.variable]; ok {
				continue
			}
			seen[cmp.variable] = struct{}{}
			names = append(names, cmp.variable)
		}
	}
	return names
}

// String returns the original expression.
func (c *Condition) String() string {
	return c.source
}
