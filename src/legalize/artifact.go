package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// isArtifact returns true for the merges and unmerges that narrowing leaves behind. Artifacts are combined away
// once the instructions producing their pieces have been legalized.
func isArtifact(inst *gmir.Instr) bool {
	op := inst.Opcode()
	return op == types.MergeValues || op == types.UnmergeValues
}

// combine tries to fold artifact inst into the instructions around it. It returns true if anything changed.
func (l *Legalizer) combine(inst *gmir.Instr) bool {
	if inst.Opcode() == types.UnmergeValues {
		return l.combineUnmerge(inst)
	}

	if l.combineRoundTrip(inst) {
		return true
	}
	changed := false
	users := append([]*gmir.Instr(nil), inst.Def(0).Users()...)
	for _, e1 := range users {
		if !e1.IsErased() && e1.Opcode() == types.UnmergeValues {
			changed = l.combineUnmerge(e1) || changed
		}
	}
	return changed
}

// combineRoundTrip replaces a merge of all the pieces of a single unmerge, in order, with the unmerged value.
func (l *Legalizer) combineRoundTrip(m *gmir.Instr) bool {
	dst := m.Def(0)
	u := m.Use(0).Def()
	if u == nil || u.Opcode() != types.UnmergeValues || len(u.Defs()) != len(m.Uses()) {
		return false
	}
	for i1, e1 := range m.Uses() {
		if u.Def(i1) != e1 {
			return false
		}
	}
	if u.Use(0).Type() != dst.Type() {
		return false
	}
	l.replace(dst, u.Use(0))
	l.erase(m)
	return true
}

// combineUnmerge folds unmerge u into the definition of its source: constants and undefined values are split
// directly and merges are matched up piece by piece.
func (l *Legalizer) combineUnmerge(u *gmir.Instr) bool {
	d := u.Use(0).Def()
	if d == nil {
		return false
	}
	switch d.Opcode() {
	case types.Constant:
		l.bd.SetInsertBefore(u)
		v := uint64(d.Imm())
		off := 0
		for _, e1 := range u.Defs() {
			l.bd.BuildConstantTo(e1, int64(v>>uint(off)))
			off += e1.Type().SizeInBits()
		}
	case types.ImplicitDef:
		l.bd.SetInsertBefore(u)
		for _, e1 := range u.Defs() {
			l.bd.BuildWith(types.ImplicitDef, []*gmir.Register{e1}, nil, gmir.Operands{Part: gmir.ArgWhole})
		}
	case types.MergeValues:
		if !l.combineMerge(u, d) {
			return false
		}
	default:
		return false
	}
	l.erase(u)
	return true
}

// combineMerge rewires the defs of unmerge u to the pieces of merge m. Both sides are walked by bit offset: a def
// matching a piece takes it over, a def spanning several pieces is merged from them and several defs within one
// piece are unmerged from it. Nothing is changed unless every def lines up with piece boundaries.
func (l *Legalizer) combineMerge(u, m *gmir.Instr) bool {
	defs, pcs := u.Defs(), m.Uses()
	var apply []func()
	i, j := 0, 0
	for i < len(defs) && j < len(pcs) {
		dw, pw := defs[i].Type().SizeInBits(), pcs[j].Type().SizeInBits()
		switch {
		case dw == pw:
			d, p := defs[i], pcs[j]
			if d.Type() != p.Type() {
				return false
			}
			apply = append(apply, func() { l.replace(d, p) })
			i, j = i+1, j+1
		case dw > pw:
			k, n := j, 0
			for k < len(pcs) && n < dw {
				n += pcs[k].Type().SizeInBits()
				k++
			}
			if n != dw {
				return false
			}
			d, ps := defs[i], append([]*gmir.Register(nil), pcs[j:k]...)
			apply = append(apply, func() { l.bd.BuildMerge(d, ps) })
			i, j = i+1, k
		default:
			k, n := i, 0
			for k < len(defs) && n < pw {
				n += defs[k].Type().SizeInBits()
				k++
			}
			if n != pw {
				return false
			}
			ds, p := append([]*gmir.Register(nil), defs[i:k]...), pcs[j]
			apply = append(apply, func() { l.bd.BuildInstr(types.UnmergeValues, ds, p) })
			i, j = k, j+1
		}
	}
	if i != len(defs) || j != len(pcs) {
		return false
	}

	l.bd.SetInsertBefore(u)
	for _, e1 := range apply {
		e1()
	}
	return true
}

// lowerMerge splits merge pieces wider than a byte into bytes. Byte pieces are left for the combiner.
func lowerMerge(l *Legalizer, inst *gmir.Instr) (bool, error) {
	wide := false
	for _, e1 := range inst.Uses() {
		if !e1.Type().IsByteSized() {
			return false, configError(l.f, inst, "merge of a partial byte", nil)
		}
		wide = wide || e1.Type() != types.S8
	}
	if !wide {
		return false, nil
	}
	l.bd.SetInsertBefore(inst)
	var bytes []*gmir.Register
	for _, e1 := range inst.Uses() {
		bytes = append(bytes, l.pieces(e1)...)
	}
	l.bd.BuildMerge(inst.Def(0), bytes)
	return true, nil
}

// lowerUnmerge splits an unmerge into values wider than a byte into bytes and merges each value from its bytes.
// Unmerges into bytes are left for the combiner.
func lowerUnmerge(l *Legalizer, inst *gmir.Instr) (bool, error) {
	src := inst.Use(0)
	wide := false
	for _, e1 := range inst.Defs() {
		if !e1.Type().IsByteSized() || !src.Type().IsByteSized() {
			return false, configError(l.f, inst, "unmerge of a partial byte", nil)
		}
		wide = wide || e1.Type() != types.S8
	}
	if !wide {
		return false, nil
	}
	l.bd.SetInsertBefore(inst)
	bytes := l.pieces(src)
	off := 0
	for _, e1 := range inst.Defs() {
		n := e1.Type().SizeInBytes()
		l.mergeTo(e1, bytes[off:off+n])
		off += n
	}
	return true, nil
}
