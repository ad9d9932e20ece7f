package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerSelect selects between pointers as s16 integers.
func lowerSelect(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, test, a, b := inst.Def(0), inst.Use(0), inst.Use(1), inst.Use(2)
	expect(inst, dst, types.P)
	l.bd.SetInsertBefore(inst)
	ia := l.bd.BuildCast(types.PtrToInt, types.S16, a)
	ib := l.bd.BuildCast(types.PtrToInt, types.S16, b)
	l.bd.BuildInstr(types.IntToPtr, []*gmir.Register{dst}, l.bd.BuildSelect(test, ia, ib))
	return true, nil
}

// lowerPtrAdd folds pointer arithmetic into the addressing modes of the target, in order of preference:
//
//   - a constant offset from a global becomes a global with an offset,
//   - an offset zero extended from a byte becomes G_INDEX,
//   - a constant offset from 0 to 255 becomes G_INDEX with a byte constant,
//   - anything else is added as s16.
func lowerPtrAdd(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, base, off := inst.Def(0), inst.Use(0), inst.Use(1)
	expect(inst, off, types.S16)
	l.bd.SetInsertBefore(inst)

	c, isConst := off.ConstantValue()
	if bd := base.Def(); isConst && bd != nil && bd.Opcode() == types.GlobalValue {
		l.bd.BuildWith(types.GlobalValue, []*gmir.Register{dst}, nil,
			gmir.Operands{Sym: bd.Sym(), Imm: bd.Imm() + c, Part: gmir.ArgWhole})
		return true, nil
	}
	if idx, ok := l.byteOffset(off); ok {
		l.bd.BuildInstr(types.Index, []*gmir.Register{dst}, base, idx)
		return true, nil
	}
	if isConst && c >= 0 && c <= 0xff {
		l.bd.BuildInstr(types.Index, []*gmir.Register{dst}, base, l.bd.BuildConstant(types.S8, c))
		return true, nil
	}

	ib := l.bd.BuildCast(types.PtrToInt, types.S16, base)
	l.bd.BuildInstr(types.IntToPtr, []*gmir.Register{dst}, l.bd.BuildBinary(types.Add, ib, off))
	return true, nil
}

// byteOffset returns the s8 value an s16 offset was zero extended from, widening narrower sources to s8.
func (l *Legalizer) byteOffset(off *gmir.Register) (*gmir.Register, bool) {
	d := off.Def()
	if d == nil {
		return nil, false
	}
	switch d.Opcode() {
	case types.ZExt:
		src := d.Use(0)
		switch {
		case src.Type() == types.S8:
			return src, true
		case src.Type().SizeInBits() < 8:
			return l.bd.BuildCast(types.ZExt, types.S8, src), true
		}
	case types.MergeValues:
		// A zero extension that has already been split into pieces.
		if len(d.Uses()) == 2 && d.Use(0).Type() == types.S8 && isConstant(d.Use(1), 0) {
			return d.Use(0), true
		}
	}
	return nil, false
}

// lowerOverflow turns an add or subtract with an overflow flag into the carry consuming form with a zero carry in.
func lowerOverflow(l *Legalizer, inst *gmir.Instr) (bool, error) {
	var op types.Opcode
	switch inst.Opcode() {
	case types.UAddO:
		op = types.UAddE
	case types.SAddO:
		op = types.SAddE
	case types.USubO:
		op = types.USubE
	default:
		op = types.SSubE
	}
	l.bd.SetInsertBefore(inst)
	l.bd.BuildInstr(op, inst.Defs(), inst.Use(0), inst.Use(1), l.bd.BuildConstant(types.S1, 0))
	return true, nil
}

// lowerSubE builds a byte subtract with borrow from G_SBC, which takes and produces an inverted borrow in its
// carry. G_USUBE reads its borrow out from the inverted carry and G_SSUBE its overflow from the overflow flag.
func lowerSubE(l *Legalizer, inst *gmir.Instr) (bool, error) {
	res, flag := inst.Def(0), inst.Def(1)
	expect(inst, res, types.S8)
	l.bd.SetInsertBefore(inst)
	cin := l.not(inst.Use(2))
	if inst.Opcode() == types.SSubE {
		l.sbc(inst.Use(0), inst.Use(1), cin, map[int]*gmir.Register{sbcResult: res, sbcOverflow: flag})
		return true, nil
	}
	sbc := l.sbcTo(inst.Use(0), inst.Use(1), cin, sbcResult, res)
	l.bd.BuildInstr(types.Xor, []*gmir.Register{flag}, sbc.Def(sbcCarry), l.bd.BuildConstant(types.S1, -1))
	return true, nil
}
