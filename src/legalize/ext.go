package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerZExt zero extends an s1 value by selecting between 1 and 0 at the destination width.
func lowerZExt(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, src := inst.Def(0), inst.Use(0)
	expect(inst, src, types.S1)
	l.bd.SetInsertBefore(inst)
	l.bd.BuildInstr(types.Select, []*gmir.Register{dst}, src, l.bd.BuildConstant(dst.Type(), 1),
		l.bd.BuildConstant(dst.Type(), 0))
	return true, nil
}

// lowerSExt sign extends a value. An s1 source selects between all ones and zero. Wider sources isolate the sign
// bit of the top byte with a mask and an equality test and append copies of a 0x00 or 0xff fill byte.
func lowerSExt(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, src := inst.Def(0), inst.Use(0)
	l.bd.SetInsertBefore(inst)
	if src.Type() == types.S1 {
		l.bd.BuildInstr(types.Select, []*gmir.Register{dst}, src, l.bd.BuildConstant(dst.Type(), -1),
			l.bd.BuildConstant(dst.Type(), 0))
		return true, nil
	}

	pcs := l.pieces(src)
	sign := l.bd.BuildBinary(types.And, pcs[len(pcs)-1], l.bd.BuildConstant(types.S8, 0x80))
	pos := l.bd.BuildICmp(types.PredEQ, sign, l.bd.BuildConstant(types.S8, 0))
	fill := l.bd.BuildSelect(pos, l.bd.BuildConstant(types.S8, 0), l.bd.BuildConstant(types.S8, 0xff))
	for len(pcs) < dst.Type().SizeInBytes() {
		pcs = append(pcs, fill)
	}
	l.mergeTo(dst, pcs)
	return true, nil
}

// lowerPtrToInt converts a pointer to an integer through its two address bytes.
func lowerPtrToInt(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, src := inst.Def(0), inst.Use(0)
	expect(inst, src, types.P)
	l.bd.SetInsertBefore(inst)
	pcs := l.bd.BuildUnmerge(types.S8, src)
	t := dst.Type()
	switch {
	case t == types.S1:
		l.bd.BuildInstr(types.Trunc, []*gmir.Register{dst}, pcs[0])
	case t.SizeInBytes() <= len(pcs):
		l.mergeTo(dst, pcs[:t.SizeInBytes()])
	default:
		for len(pcs) < t.SizeInBytes() {
			pcs = append(pcs, l.bd.BuildConstant(types.S8, 0))
		}
		l.bd.BuildMerge(dst, pcs)
	}
	return true, nil
}

// lowerIntToPtr converts an integer to a pointer from its two low bytes. Narrower integers are zero extended.
func lowerIntToPtr(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, src := inst.Def(0), inst.Use(0)
	expect(inst, dst, types.P)
	l.bd.SetInsertBefore(inst)
	if src.Type() == types.S1 {
		src = l.bd.BuildCast(types.ZExt, types.S8, src)
	}
	pcs := l.pieces(src)
	for len(pcs) < 2 {
		pcs = append(pcs, l.bd.BuildConstant(types.S8, 0))
	}
	l.bd.BuildMerge(dst, pcs[:2])
	return true, nil
}

// lowerBSwap swaps the bytes of a value. Swapping a single byte is a copy.
func lowerBSwap(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, src := inst.Def(0), inst.Use(0)
	l.bd.SetInsertBefore(inst)
	if src.Type() == types.S8 {
		l.bd.BuildCopy(dst, src)
		return true, nil
	}
	pcs := l.pieces(src)
	for i1, j := 0, len(pcs)-1; i1 < j; i1, j = i1+1, j-1 {
		pcs[i1], pcs[j] = pcs[j], pcs[i1]
	}
	l.bd.BuildMerge(dst, pcs)
	return true, nil
}
