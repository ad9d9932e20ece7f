package legalize

import (
	"fmt"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// Flag positions in the defs of G_SBC.
const (
	sbcResult = iota
	sbcCarry
	sbcNegative
	sbcOverflow
	sbcZero
)

// lowerICmp lowers an integer comparison onto the flags of G_SBC. Predicates without a direct flag are rewritten
// in terms of EQ, UGE and SLT first:
//
//  1. NE, ULT and SGE negate the inverse comparison.
//  2. ULE, UGT, SLE and SGT swap the operands.
//  3. Pointers are compared as s16.
//  4. Wide EQ and UGE compare the top bytes and fall back to the remaining bytes when they're equal.
//  5. Wide SLT subtracts byte by byte with the borrow running upwards and corrects the sign of the top byte.
//  6. Bytes read Z for EQ, C for UGE and N, corrected for overflow, for SLT.
func lowerICmp(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, a, b := inst.Def(0), inst.Use(0), inst.Use(1)
	pred := inst.Pred()
	l.bd.SetInsertBefore(inst)

	switch pred {
	case types.PredNE, types.PredULT, types.PredSGE:
		inv := l.bd.BuildICmp(pred.Inverse(), a, b)
		l.bd.BuildInstr(types.Xor, []*gmir.Register{dst}, inv, l.bd.BuildConstant(types.S1, -1))
		return true, nil
	case types.PredULE, types.PredUGT, types.PredSLE, types.PredSGT:
		l.bd.BuildICmpTo(dst, pred.Swapped(), b, a)
		return true, nil
	}

	if a.Type().IsPointer() {
		ia := l.bd.BuildCast(types.PtrToInt, types.S16, a)
		ib := l.bd.BuildCast(types.PtrToInt, types.S16, b)
		l.bd.BuildICmpTo(dst, pred, ia, ib)
		return true, nil
	}
	if !a.Type().IsByteSized() {
		panic(fmt.Sprintf("%s: comparison of a partial byte", inst))
	}

	if a.Type() == types.S8 {
		l.compareByte(pred, dst, a, b)
		return true, nil
	}

	pa, pb := l.pieces(a), l.pieces(b)
	n := len(pa)
	switch pred {
	case types.PredEQ, types.PredUGE:
		hiEq := l.bd.BuildICmp(types.PredEQ, pa[n-1], pb[n-1])
		rest := l.bd.BuildICmp(pred, l.mergeNew(pa[:n-1]), l.mergeNew(pb[:n-1]))
		hi := l.bd.BuildConstant(types.S1, 0)
		if pred == types.PredUGE {
			hi = l.bd.BuildICmp(types.PredUGE, pa[n-1], pb[n-1])
		}
		l.bd.BuildInstr(types.Select, []*gmir.Register{dst}, hiEq, rest, hi)
	case types.PredSLT:
		c := l.bd.BuildConstant(types.S1, 1)
		for i1 := 0; i1 < n-1; i1++ {
			c = l.bd.BuildSbc(pa[i1], pb[i1], c).Def(sbcCarry)
		}
		top := l.bd.BuildSbc(pa[n-1], pb[n-1], c)
		l.signOf(dst, top)
	default:
		panic(fmt.Sprintf("%s: unexpected predicate", inst))
	}
	return true, nil
}

// compareByte defines dst as the s8 comparison pred of a and b.
func (l *Legalizer) compareByte(pred types.Predicate, dst, a, b *gmir.Register) {
	one := l.bd.BuildConstant(types.S1, 1)
	switch pred {
	case types.PredEQ:
		l.sbcTo(a, b, one, sbcZero, dst)
	case types.PredUGE:
		l.sbcTo(a, b, one, sbcCarry, dst)
	case types.PredSLT:
		if isConstant(b, 0) {
			l.sbcTo(a, b, one, sbcNegative, dst)
			return
		}
		l.signOf(dst, l.bd.BuildSbc(a, b, one))
	default:
		panic(fmt.Sprintf("unexpected byte predicate %s", pred))
	}
}

// signOf defines dst as the true sign of the subtraction of G_SBC sbc: bit 7 of the result is complemented when
// the subtraction overflowed, and the corrected byte has its sign tested by subtracting zero.
func (l *Legalizer) signOf(dst *gmir.Register, sbc *gmir.Instr) {
	r := sbc.Def(sbcResult)
	flipped := l.bd.BuildBinary(types.Xor, r, l.bd.BuildConstant(types.S8, 0x80))
	fixed := l.bd.BuildSelect(sbc.Def(sbcOverflow), flipped, r)
	l.sbcTo(fixed, l.bd.BuildConstant(types.S8, 0), l.bd.BuildConstant(types.S1, 1), sbcNegative, dst)
}

// sbcTo builds G_SBC a, b, cin with flag def k written to dst.
func (l *Legalizer) sbcTo(a, b, cin *gmir.Register, k int, dst *gmir.Register) *gmir.Instr {
	return l.sbc(a, b, cin, map[int]*gmir.Register{k: dst})
}

// sbc builds G_SBC a, b, cin. The defs listed in fixed are written to the given registers, the others to new ones.
func (l *Legalizer) sbc(a, b, cin *gmir.Register, fixed map[int]*gmir.Register) *gmir.Instr {
	defs := []*gmir.Register{
		l.f.NewRegister(types.S8),
		l.f.NewRegister(types.S1),
		l.f.NewRegister(types.S1),
		l.f.NewRegister(types.S1),
		l.f.NewRegister(types.S1),
	}
	for k, e1 := range fixed {
		defs[k] = e1
	}
	return l.bd.BuildInstr(types.Sbc, defs, a, b, cin)
}
