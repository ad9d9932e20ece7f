package gmir

import (
	"fmt"
	"strings"

	"moslegal/src/ir/gmir/types"
)

// String returns the textual gMIR representation of Instr inst.
func (inst *Instr) String() string {
	sb := strings.Builder{}
	for i1, e1 := range inst.defs {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s:%s", e1, e1.typ))
	}
	if len(inst.defs) > 0 {
		sb.WriteString(" = ")
	}
	sb.WriteString(inst.op.String())
	if inst.op == types.ICmp {
		sb.WriteRune(' ')
		sb.WriteString(inst.pred.String())
	}

	ops := make([]string, 0, len(inst.uses)+4)
	switch inst.op {
	case types.Constant, types.FConstant:
		ops = append(ops, fmt.Sprintf("%d", inst.imm))
	case types.FrameIndex:
		ops = append(ops, fmt.Sprintf("%s%d", labelStackPrefix, inst.imm))
	case types.GlobalValue:
		ops = append(ops, symbol(inst.sym, inst.imm))
	case types.Arg:
		ops = append(ops, fmt.Sprintf("%d", inst.imm))
		if inst.part != ArgWhole {
			ops = append(ops, fmt.Sprintf("%d", inst.part))
		}
	case types.Call:
		ops = append(ops, symbol(inst.sym, 0))
	}

	if inst.op == types.Phi {
		for i1, e1 := range inst.uses {
			ops = append(ops, e1.String(), inst.targets[i1].Name())
		}
	} else {
		for _, e1 := range inst.uses {
			ops = append(ops, e1.String())
		}
		switch inst.op {
		case types.BrCondImm, types.DynStackAlloc, types.SExtInReg, types.Extract, types.Insert, types.SExtLoad,
			types.ZExtLoad:
			ops = append(ops, fmt.Sprintf("%d", inst.imm))
		}
		for _, e1 := range inst.targets {
			ops = append(ops, e1.Name())
		}
	}
	for _, e1 := range inst.impDefs {
		ops = append(ops, fmt.Sprintf("implicit-def $%s", e1))
	}
	for _, e1 := range inst.implicit {
		ops = append(ops, fmt.Sprintf("implicit $%s", e1))
	}

	if len(ops) > 0 {
		sb.WriteRune(' ')
		sb.WriteString(strings.Join(ops, ", "))
	}
	return sb.String()
}

// symbol formats a symbol reference with an optional byte offset.
func symbol(sym string, off int64) string {
	switch {
	case off > 0:
		return fmt.Sprintf("@%s+%d", sym, off)
	case off < 0:
		return fmt.Sprintf("@%s%d", sym, off)
	default:
		return "@" + sym
	}
}
