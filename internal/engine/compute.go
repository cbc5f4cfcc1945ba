package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/slot"
)

// buildCompute returns the derive function of a computed slot. It reads the
// argument slots through their policies on every call, so an unset late
// argument surfaces as that slot's UNINITIALIZED error.
func buildCompute(spec ir.ComputeSpec) (func(h *slot.Host) (ir.IRValue, error), error) {
	args := append([]string(nil), spec.Args...)

	switch spec.Op {
	case ir.ComputeProduct, ir.ComputeSum:
		product := spec.Op == ir.ComputeProduct
		return func(h *slot.Host) (ir.IRValue, error) {
			acc := ir.IRInt(0)
			if product {
				acc = 1
			}
			for _, arg := range args {
				v, err := slot.Get[ir.IRValue](h, arg)
				if err != nil {
					return nil, err
				}
				n, ok := v.(ir.IRInt)
				if !ok {
					return nil, fmt.Errorf("compute %s: argument %q is %s, want int", spec.Op, arg, ir.TypeOf(v))
				}
				if product {
					acc *= n
				} else {
					acc += n
				}
			}
			return acc, nil
		}, nil

	case ir.ComputeConcat:
		sep := spec.Sep
		return func(h *slot.Host) (ir.IRValue, error) {
			parts := make([]string, len(args))
			for i, arg := range args {
				v, err := slot.Get[ir.IRValue](h, arg)
				if err != nil {
					return nil, err
				}
				switch val := v.(type) {
				case ir.IRString:
					parts[i] = string(val)
				case ir.IRInt:
					parts[i] = strconv.FormatInt(int64(val), 10)
				case ir.IRBool:
					parts[i] = strconv.FormatBool(bool(val))
				default:
					return nil, fmt.Errorf("compute concat: argument %q is %s", arg, ir.TypeOf(v))
				}
			}
			return ir.IRString(strings.Join(parts, sep)), nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown compute op %q", spec.Op)
	}
}
