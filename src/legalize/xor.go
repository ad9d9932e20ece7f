package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerXor legalizes an s1 G_XOR. A negation is folded into the users that can test its source directly:
// conditional branches flip their polarity, a select of 0 and -1 on the negation becomes a copy of the source and a
// second negation becomes a copy too. A negation still read afterwards selects between 0 and 1. Any other s1 xor is
// computed at s8.
func lowerXor(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst := inst.Def(0)
	src, ok := notSource(dst)
	if !ok {
		if !dst.HasUsers() {
			return true, nil
		}
		return l.widenScalar(inst, 0, types.S8)
	}

	for _, e1 := range append([]*gmir.Instr(nil), dst.Users()...) {
		if e1.IsErased() {
			continue
		}
		l.bd.SetInsertBefore(e1)
		switch e1.Opcode() {
		case types.BrCondImm:
			if e1.Use(0) != dst {
				continue
			}
			l.bd.BuildBrCondImm(src, ^e1.Imm()&1, e1.Targets()[0], e1.Targets()[1])
		case types.BrCond:
			l.bd.BuildBrCondImm(src, 0, e1.Targets()[0], e1.Targets()[1])
		case types.Select:
			if e1.Def(0).Type() != types.S1 || e1.Use(0) != dst || !isConstant(e1.Use(1), 0) ||
				!isAllOnes(e1.Use(2)) {
				continue
			}
			l.bd.BuildCopy(e1.Def(0), src)
		case types.Xor:
			if r, ok := notSource(e1.Def(0)); !ok || r != dst {
				continue
			}
			l.bd.BuildCopy(e1.Def(0), src)
		default:
			continue
		}
		l.erase(e1)
	}

	if !dst.HasUsers() {
		return true, nil
	}
	l.bd.SetInsertBefore(inst)
	l.bd.BuildInstr(types.Select, []*gmir.Register{dst}, src, l.bd.BuildConstant(types.S1, 0),
		l.bd.BuildConstant(types.S1, 1))
	return true, nil
}

// lowerBrCond turns G_BRCOND into G_BRCOND_IMM. A branch on a negation tests its source for zero instead.
func lowerBrCond(l *Legalizer, inst *gmir.Instr) (bool, error) {
	cond := inst.Use(0)
	thn, els := inst.Targets()[0], inst.Targets()[1]
	l.bd.SetInsertBefore(inst)
	if src, ok := notSource(cond); ok {
		l.bd.BuildBrCondImm(src, 0, thn, els)
	} else {
		l.bd.BuildBrCondImm(cond, 1, thn, els)
	}
	return true, nil
}
