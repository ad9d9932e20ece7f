package legalize

import (
	"fmt"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ---------------------
// ----- Functions -----
// ---------------------

// widenScalar rebuilds Instr inst with every operand of type index idx extended to type wide. Widened results are
// truncated back into the original registers.
func (l *Legalizer) widenScalar(inst *gmir.Instr, idx int, wide types.LLT) (bool, error) {
	op := inst.Opcode()
	if op == types.Phi {
		panic(fmt.Sprintf("%s: PHIs are never widened", inst))
	}
	s := layout(inst)[idx]
	ext := extensionOf(inst, idx)

	l.bd.SetInsertBefore(inst)
	uses := append([]*gmir.Register(nil), inst.Uses()...)
	for _, e1 := range s.uses {
		uses[e1] = l.bd.BuildCast(ext, wide, uses[e1])
	}
	defs := append([]*gmir.Register(nil), inst.Defs()...)
	for _, e1 := range s.defs {
		defs[e1] = l.f.NewRegister(wide)
	}
	l.bd.BuildWith(op, defs, uses, inst.Operands())
	for _, e1 := range s.defs {
		l.bd.BuildInstr(types.Trunc, []*gmir.Register{inst.Def(e1)}, defs[e1])
	}
	return true, nil
}

// extensionOf returns the extension that preserves the meaning of type index idx of Instr inst when widened.
func extensionOf(inst *gmir.Instr, idx int) types.Opcode {
	switch inst.Opcode() {
	case types.SDiv, types.SRem, types.SMin, types.SMax, types.SDivRem:
		return types.SExt
	case types.UDiv, types.URem, types.UMin, types.UMax, types.UDivRem, types.Store:
		return types.ZExt
	case types.AShr:
		if idx == 0 {
			return types.SExt
		}
		return types.ZExt
	case types.LShr:
		return types.ZExt
	case types.Shl, types.DynStackAlloc:
		if idx == 0 {
			return types.AnyExt
		}
		return types.ZExt
	case types.PtrAdd:
		return types.SExt
	case types.ICmp:
		if inst.Pred().IsSigned() {
			return types.SExt
		}
		return types.ZExt
	}
	return types.AnyExt
}

// narrowScalar splits the operands of type index idx of Instr inst. Value types are always split into s8 pieces;
// secondary indices (shift amounts, offsets, sizes) are truncated to narrow.
func (l *Legalizer) narrowScalar(inst *gmir.Instr, idx int, narrow types.LLT) (bool, error) {
	op := inst.Opcode()
	l.bd.SetInsertBefore(inst)

	if idx == 1 {
		switch op {
		case types.Trunc:
			return l.narrowTrunc(inst)
		case types.Shl, types.LShr, types.AShr, types.PtrAdd, types.DynStackAlloc:
			uses := append([]*gmir.Register(nil), inst.Uses()...)
			for _, e1 := range layout(inst)[1].uses {
				uses[e1] = l.bd.BuildCast(types.Trunc, narrow, uses[e1])
			}
			l.bd.BuildWith(op, inst.Defs(), uses, inst.Operands())
			return true, nil
		}
		panic(fmt.Sprintf("%s: cannot narrow type index 1", inst))
	}
	if idx != 0 || narrow != types.S8 {
		panic(fmt.Sprintf("%s: cannot narrow type index %d to %s", inst, idx, narrow))
	}

	switch op {
	case types.Constant:
		dst := inst.Def(0)
		v := uint64(inst.Imm())
		pcs := make([]*gmir.Register, dst.Type().SizeInBytes())
		for i1 := range pcs {
			pcs[i1] = l.bd.BuildConstant(types.S8, int64(v>>(8*uint(i1))))
		}
		l.bd.BuildMerge(dst, pcs)
	case types.ImplicitDef:
		dst := inst.Def(0)
		pcs := make([]*gmir.Register, dst.Type().SizeInBytes())
		for i1 := range pcs {
			pcs[i1] = l.bd.BuildUndef(types.S8)
		}
		l.bd.BuildMerge(dst, pcs)
	case types.Arg:
		dst := inst.Def(0)
		if inst.Part() != gmir.ArgWhole {
			panic(fmt.Sprintf("%s: byte part of a wide parameter", inst))
		}
		pcs := make([]*gmir.Register, dst.Type().SizeInBytes())
		for i1 := range pcs {
			pcs[i1] = l.bd.BuildArg(types.S8, int(inst.Imm()), i1)
		}
		l.bd.BuildMerge(dst, pcs)
	case types.Copy:
		l.bd.BuildMerge(inst.Def(0), l.pieces(inst.Use(0)))
	case types.AnyExt, types.ZExt:
		l.narrowExt(inst)
	case types.And, types.Or, types.Xor:
		a, b := l.pieces(inst.Use(0)), l.pieces(inst.Use(1))
		pcs := make([]*gmir.Register, len(a))
		for i1 := range pcs {
			pcs[i1] = l.bd.BuildBinary(op, a[i1], b[i1])
		}
		l.bd.BuildMerge(inst.Def(0), pcs)
	case types.Add, types.Sub:
		first, rest := types.UAddO, types.UAddE
		if op == types.Sub {
			first, rest = types.USubO, types.USubE
		}
		a, b := l.pieces(inst.Use(0)), l.pieces(inst.Use(1))
		pcs := make([]*gmir.Register, len(a))
		c := l.bd.Build(first, []types.LLT{types.S8, types.S1}, a[0], b[0])
		pcs[0] = c.Def(0)
		for i1 := 1; i1 < len(a); i1++ {
			c = l.bd.Build(rest, []types.LLT{types.S8, types.S1}, a[i1], b[i1], c.Def(1))
			pcs[i1] = c.Def(0)
		}
		l.bd.BuildMerge(inst.Def(0), pcs)
	case types.UAddE, types.SAddE, types.USubE, types.SSubE:
		l.narrowCarryChain(inst)
	case types.Select:
		a, b := l.pieces(inst.Use(1)), l.pieces(inst.Use(2))
		pcs := make([]*gmir.Register, len(a))
		for i1 := range pcs {
			pcs[i1] = l.bd.BuildSelect(inst.Use(0), a[i1], b[i1])
		}
		l.bd.BuildMerge(inst.Def(0), pcs)
	case types.Load:
		dst, ptr := inst.Def(0), inst.Use(0)
		pcs := make([]*gmir.Register, dst.Type().SizeInBytes())
		for i1 := range pcs {
			pcs[i1] = l.bd.BuildLoad(types.S8, l.byteAddress(ptr, i1))
		}
		l.bd.BuildMerge(dst, pcs)
	case types.Store:
		ptr := inst.Use(1)
		for i1, e1 := range l.pieces(inst.Use(0)) {
			l.bd.BuildStore(e1, l.byteAddress(ptr, i1))
		}
	case types.Phi:
		l.narrowPhi(inst)
	default:
		panic(fmt.Sprintf("%s: cannot narrow", inst))
	}
	return true, nil
}

// narrowTrunc truncates a wide source by picking its low pieces.
func (l *Legalizer) narrowTrunc(inst *gmir.Instr) (bool, error) {
	dst := inst.Def(0)
	pcs := l.pieces(inst.Use(0))
	switch {
	case dst.Type() == types.S1:
		l.bd.BuildInstr(types.Trunc, []*gmir.Register{dst}, pcs[0])
	case dst.Type().IsByteSized():
		l.mergeTo(dst, pcs[:dst.Type().SizeInBytes()])
	default:
		panic(fmt.Sprintf("%s: truncation to a partial byte", inst))
	}
	return true, nil
}

// narrowExt builds a wide G_ANYEXT or G_ZEXT from the source pieces and padding bytes.
func (l *Legalizer) narrowExt(inst *gmir.Instr) {
	dst, src := inst.Def(0), inst.Use(0)
	var pcs []*gmir.Register
	if src.Type() == types.S1 {
		pcs = []*gmir.Register{l.bd.BuildCast(inst.Opcode(), types.S8, src)}
	} else {
		pcs = l.pieces(src)
	}
	for len(pcs) < dst.Type().SizeInBytes() {
		if inst.Opcode() == types.ZExt {
			pcs = append(pcs, l.bd.BuildConstant(types.S8, 0))
		} else {
			pcs = append(pcs, l.bd.BuildUndef(types.S8))
		}
	}
	l.bd.BuildMerge(dst, pcs)
}

// narrowCarryChain splits a carry consuming add or subtract into a chain of byte operations. The carry or borrow
// runs from the least to the most significant byte; only the last byte keeps a signed opcode.
func (l *Legalizer) narrowCarryChain(inst *gmir.Instr) {
	op := inst.Opcode()
	mid := types.UAddE
	if op == types.USubE || op == types.SSubE {
		mid = types.USubE
	}
	a, b := l.pieces(inst.Use(0)), l.pieces(inst.Use(1))
	c := inst.Use(2)
	pcs := make([]*gmir.Register, len(a))
	for i1 := range a {
		o := mid
		defs := []*gmir.Register{l.f.NewRegister(types.S8), l.f.NewRegister(types.S1)}
		if i1 == len(a)-1 {
			o = op
			defs[1] = inst.Def(1)
		}
		l.bd.BuildInstr(o, defs, a[i1], b[i1], c)
		pcs[i1], c = defs[0], defs[1]
	}
	l.bd.BuildMerge(inst.Def(0), pcs)
}

// narrowPhi splits a wide PHI into one byte PHI per piece. The incoming values are split at the end of their
// predecessors and the pieces merged after the PHIs of the block.
func (l *Legalizer) narrowPhi(inst *gmir.Instr) {
	dst := inst.Def(0)
	n := dst.Type().SizeInBytes()
	preds := inst.Targets()
	incoming := make([][]*gmir.Register, len(preds))
	for i1, e1 := range preds {
		l.bd.SetInsertBeforeTerminator(e1)
		incoming[i1] = l.pieces(inst.Use(i1))
	}
	pcs := make([]*gmir.Register, n)
	l.bd.SetInsertBefore(inst)
	for i1 := range pcs {
		vals := make([]*gmir.Register, len(preds))
		for i2 := range preds {
			vals[i2] = incoming[i2][i1]
		}
		pcs[i1] = l.f.NewRegister(types.S8)
		l.bd.BuildPhi(pcs[i1], vals, preds)
	}
	l.bd.SetInsertAfterPhis(inst.Block())
	l.bd.BuildMerge(dst, pcs)
}

// pieces splits Register r into s8 pieces at the insertion point, least significant first.
func (l *Legalizer) pieces(r *gmir.Register) []*gmir.Register {
	t := r.Type()
	switch {
	case t == types.S8:
		return []*gmir.Register{r}
	case t.IsPointer(), t.IsScalar() && t.IsByteSized():
		return l.bd.BuildUnmerge(types.S8, r)
	}
	panic(fmt.Sprintf("%s:%s cannot be split into bytes", r, t))
}

// mergeTo defines dst from pcs, least significant first. A single piece of the same type is copied.
func (l *Legalizer) mergeTo(dst *gmir.Register, pcs []*gmir.Register) {
	if len(pcs) == 1 && pcs[0].Type() == dst.Type() {
		l.bd.BuildCopy(dst, pcs[0])
		return
	}
	l.bd.BuildMerge(dst, pcs)
}

// mergeNew returns a new register of the width of pcs holding their concatenation. A single piece is returned as
// is.
func (l *Legalizer) mergeNew(pcs []*gmir.Register) *gmir.Register {
	if len(pcs) == 1 {
		return pcs[0]
	}
	n := 0
	for _, e1 := range pcs {
		n += e1.Type().SizeInBits()
	}
	return l.bd.BuildMergeNew(types.Scalar(n), pcs)
}

// byteAddress returns ptr advanced by i bytes.
func (l *Legalizer) byteAddress(ptr *gmir.Register, i int) *gmir.Register {
	if i == 0 {
		return ptr
	}
	return l.bd.BuildPtrAdd(ptr, l.bd.BuildConstant(types.S16, int64(i)))
}

// not returns the boolean negation of s1 Register r. Constants are folded and a negation is unwrapped instead of
// negated twice.
func (l *Legalizer) not(r *gmir.Register) *gmir.Register {
	if v, ok := r.ConstantValue(); ok {
		return l.bd.BuildConstant(types.S1, ^v&1)
	}
	if src, ok := notSource(r); ok {
		return src
	}
	return l.bd.BuildNot(r)
}

// notSource returns x if Register r is defined as G_XOR x, -1 of type s1.
func notSource(r *gmir.Register) (*gmir.Register, bool) {
	d := r.Def()
	if d == nil || d.Opcode() != types.Xor || r.Type() != types.S1 {
		return nil, false
	}
	if isAllOnes(d.Use(1)) {
		return d.Use(0), true
	}
	if isAllOnes(d.Use(0)) {
		return d.Use(1), true
	}
	return nil, false
}

// isAllOnes returns true if Register r is a constant with every bit set.
func isAllOnes(r *gmir.Register) bool {
	v, ok := r.ConstantValue()
	return ok && uint64(v)&r.Type().Mask() == r.Type().Mask()
}

// isConstant returns true if Register r is the constant v.
func isConstant(r *gmir.Register, v int64) bool {
	c, ok := r.ConstantValue()
	return ok && uint64(c)&r.Type().Mask() == uint64(v)&r.Type().Mask()
}
