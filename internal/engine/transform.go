package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/slotbind/internal/ir"
)

// buildTransform returns the pure function named by spec. Values of the
// wrong type pass through unchanged; the type check at the engine boundary
// keeps them from reaching a slot.
func buildTransform(spec ir.TransformSpec) (func(ir.IRValue) ir.IRValue, error) {
	switch spec.Name {
	case ir.TransformUpper, ir.TransformLower:
		tag := language.Und
		if spec.Text != "" {
			var err error
			if tag, err = language.Parse(spec.Text); err != nil {
				return nil, fmt.Errorf("transform %s: %w", spec.Name, err)
			}
		}
		upper := spec.Name == ir.TransformUpper
		return mapString(func(s string) string {
			// A Caser holds state, so each call gets its own.
			if upper {
				return cases.Upper(tag).String(s)
			}
			return cases.Lower(tag).String(s)
		}), nil
	case ir.TransformTrim:
		return mapString(strings.TrimSpace), nil
	case ir.TransformPrefix:
		prefix := spec.Text
		return mapString(func(s string) string { return prefix + s }), nil
	case ir.TransformClamp:
		lo, hi := ir.IRInt(spec.Min), ir.IRInt(spec.Max)
		return func(v ir.IRValue) ir.IRValue {
			n, ok := v.(ir.IRInt)
			if !ok {
				return v
			}
			return max(lo, min(hi, n))
		}, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", spec.Name)
	}
}

func mapString(fn func(string) string) func(ir.IRValue) ir.IRValue {
	return func(v ir.IRValue) ir.IRValue {
		s, ok := v.(ir.IRString)
		if !ok {
			return v
		}
		return ir.IRString(fn(string(s)))
	}
}
