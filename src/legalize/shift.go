package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerShift decomposes G_SHL and G_LSHR by constant amounts. Whole byte amounts move bytes, a single bit becomes a
// chain of one bit shifts through the carry and every other amount calls the runtime. G_ASHR always calls the
// runtime.
func lowerShift(l *Legalizer, inst *gmir.Instr) (bool, error) {
	op := inst.Opcode()
	dst, v, amt := inst.Def(0), inst.Use(0), inst.Use(1)
	expect(inst, amt, types.S8)
	k, ok := amt.ConstantValue()
	if !ok || op == types.AShr {
		return l.shiftLibcall(inst)
	}
	k &= 0xff
	w := int64(dst.Type().SizeInBits())

	l.bd.SetInsertBefore(inst)
	switch {
	case k == 0:
		l.bd.BuildCopy(dst, v)
	case k >= w:
		l.bd.BuildConstantTo(dst, 0)
	case k%8 == 0:
		l.shiftBytes(op, dst, v, int(k/8))
	case k == 1:
		l.shiftBit(op, dst, v)
	default:
		return l.shiftLibcall(inst)
	}
	return true, nil
}

// shiftBytes defines dst as v shifted by n whole bytes.
func (l *Legalizer) shiftBytes(op types.Opcode, dst, v *gmir.Register, n int) {
	in := l.pieces(v)
	out := make([]*gmir.Register, len(in))
	for i1 := range out {
		src := i1 - n
		if op == types.LShr {
			src = i1 + n
		}
		if src >= 0 && src < len(in) {
			out[i1] = in[src]
		} else {
			out[i1] = l.bd.BuildConstant(types.S8, 0)
		}
	}
	l.bd.BuildMerge(dst, out)
}

// shiftBit defines dst as v shifted by one bit. The carry starts at zero and moves from the least to the most
// significant byte for left shifts and the other way for right shifts.
func (l *Legalizer) shiftBit(op types.Opcode, dst, v *gmir.Register) {
	eop := types.ShlE
	if op == types.LShr {
		eop = types.LShrE
	}
	c := l.bd.BuildConstant(types.S1, 0)
	if v.Type() == types.S8 {
		l.bd.BuildInstr(eop, []*gmir.Register{dst, l.f.NewRegister(types.S1)}, v, c)
		return
	}

	in := l.pieces(v)
	out := make([]*gmir.Register, len(in))
	for i1 := range in {
		i := i1
		if op == types.LShr {
			i = len(in) - 1 - i1
		}
		e := l.bd.BuildShiftE(eop, in[i], c)
		out[i], c = e.Def(0), e.Def(1)
	}
	l.bd.BuildMerge(dst, out)
}

// lowerRotate decomposes G_ROTL and G_ROTR. A byte rotated by 7 is rotated by 1 the other way; a byte rotated by 1
// shifts through the carry twice, the first carry out feeding the second carry in. Every other rotation combines a
// left and a right shift.
func lowerRotate(l *Legalizer, inst *gmir.Instr) (bool, error) {
	op := inst.Opcode()
	dst, v, amt := inst.Def(0), inst.Use(0), inst.Use(1)
	w := int64(dst.Type().SizeInBits())
	l.bd.SetInsertBefore(inst)

	if k, ok := amt.ConstantValue(); ok {
		k = int64(uint64(k)&amt.Type().Mask()) % w
		switch {
		case k == 0:
			l.bd.BuildCopy(dst, v)
			return true, nil
		case w == 8 && k == 7:
			opposite := types.RotR
			if op == types.RotR {
				opposite = types.RotL
			}
			l.bd.BuildInstr(opposite, []*gmir.Register{dst}, v, l.bd.BuildConstant(types.S8, 1))
			return true, nil
		case w == 8 && k == 1:
			eop := types.ShlE
			if op == types.RotR {
				eop = types.LShrE
			}
			first := l.bd.BuildShiftE(eop, v, l.bd.BuildUndef(types.S1))
			l.bd.BuildInstr(eop, []*gmir.Register{dst, l.f.NewRegister(types.S1)}, v, first.Def(1))
			return true, nil
		}
		fwd, back := k, (w-k)%w
		if op == types.RotR {
			fwd, back = back, fwd
		}
		left := l.bd.BuildBinary(types.Shl, v, l.bd.BuildConstant(types.S8, fwd))
		right := l.bd.BuildBinary(types.LShr, v, l.bd.BuildConstant(types.S8, back))
		l.bd.BuildInstr(types.Or, []*gmir.Register{dst}, left, right)
		return true, nil
	}

	// rotl(v, n) = v << (n mod w) | v >> (-n mod w), with the shifts by w avoided by reducing both amounts mod w.
	// Power of two widths reduce with a mask, the others with G_UREM.
	if amt.Type().SizeInBits() < 8 {
		amt = l.bd.BuildCast(types.ZExt, types.S8, amt)
	}
	at := amt.Type()
	var fwd, back *gmir.Register
	if w&(w-1) == 0 {
		m := l.bd.BuildConstant(at, w-1)
		fwd = l.bd.BuildBinary(types.And, amt, m)
		back = l.bd.BuildBinary(types.And, l.bd.BuildBinary(types.Sub, l.bd.BuildConstant(at, 0), amt), m)
	} else {
		n := l.bd.BuildConstant(at, w)
		fwd = l.bd.BuildBinary(types.URem, amt, n)
		back = l.bd.BuildBinary(types.URem, l.bd.BuildBinary(types.Sub, n, fwd), n)
	}
	if op == types.RotR {
		fwd, back = back, fwd
	}
	left := l.bd.Build(types.Shl, []types.LLT{dst.Type()}, v, fwd).Def(0)
	right := l.bd.Build(types.LShr, []types.LLT{dst.Type()}, v, back).Def(0)
	l.bd.BuildInstr(types.Or, []*gmir.Register{dst}, left, right)
	return true, nil
}
