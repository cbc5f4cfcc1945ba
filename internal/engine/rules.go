package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/roach88/slotbind/internal/ir"
)

// evalRule reports whether v satisfies rule. A value of the wrong type
// never satisfies a rule.
func evalRule(rule ir.RuleSpec, v ir.IRValue) bool {
	switch rule.Op {
	case ir.RuleMin, ir.RuleMax:
		n, ok := v.(ir.IRInt)
		bound, okBound := rule.Value.(ir.IRInt)
		if !ok || !okBound {
			return false
		}
		if rule.Op == ir.RuleMin {
			return n >= bound
		}
		return n <= bound
	case ir.RuleNotEmpty:
		s, ok := v.(ir.IRString)
		return ok && strings.TrimSpace(string(s)) != ""
	case ir.RuleContains:
		s, ok := v.(ir.IRString)
		sub, okSub := rule.Value.(ir.IRString)
		return ok && okSub && strings.Contains(string(s), string(sub))
	case ir.RuleMaxLen:
		s, ok := v.(ir.IRString)
		n, okN := rule.Value.(ir.IRInt)
		return ok && okN && int64(utf8.RuneCountInString(string(s))) <= int64(n)
	case ir.RuleOneOf:
		options, ok := rule.Value.(ir.IRArray)
		if !ok {
			return false
		}
		for _, opt := range options {
			if ir.Equal(opt, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// evalRules reports whether v satisfies every rule.
func evalRules(rules []ir.RuleSpec, v ir.IRValue) bool {
	for _, r := range rules {
		if !evalRule(r, v) {
			return false
		}
	}
	return true
}
