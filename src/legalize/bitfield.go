package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// splat repeats byte b across the width of t.
func splat(t types.LLT, b byte) int64 {
	return int64(0x0101010101010101 * uint64(b) & t.Mask())
}

// lowerSExtInReg sign extends the low Imm bits by shifting them to the top and arithmetically back.
func (l *Legalizer) lowerSExtInReg(inst *gmir.Instr) {
	dst, x := inst.Def(0), inst.Use(0)
	s := int64(dst.Type().SizeInBits()) - inst.Imm()
	if s == 0 {
		l.bd.BuildCopy(dst, x)
		return
	}
	l.bd.BuildInstr(types.AShr, []*gmir.Register{dst}, l.shiftBy(types.Shl, x, s), l.bd.BuildConstant(types.S8, s))
}

// lowerExtract shifts the field down to bit 0 and truncates it.
func (l *Legalizer) lowerExtract(inst *gmir.Instr) {
	dst, x := inst.Def(0), inst.Use(0)
	v := x
	if off := inst.Imm(); off > 0 {
		v = l.shiftBy(types.LShr, x, off)
	}
	if dst.Type() == x.Type() {
		l.bd.BuildCopy(dst, v)
		return
	}
	l.bd.BuildInstr(types.Trunc, []*gmir.Register{dst}, v)
}

// lowerInsert clears the field in the destination value and ors the shifted source into it.
func (l *Legalizer) lowerInsert(inst *gmir.Instr) {
	dst, x, y := inst.Def(0), inst.Use(0), inst.Use(1)
	t, off := dst.Type(), inst.Imm()
	field := y.Type().Mask() << uint(off) & t.Mask()
	v := y
	if y.Type() != t {
		v = l.bd.BuildCast(types.ZExt, t, y)
	}
	if off > 0 {
		v = l.shiftBy(types.Shl, v, off)
	}
	kept := l.bd.BuildBinary(types.And, x, l.bd.BuildConstant(t, int64(^field&t.Mask())))
	l.bd.BuildInstr(types.Or, []*gmir.Register{dst}, kept, v)
}

// lowerExtLoad loads the narrow value and extends it.
func (l *Legalizer) lowerExtLoad(inst *gmir.Instr) {
	dst, ptr := inst.Def(0), inst.Use(0)
	n := int(inst.Imm()) * 8
	if n == dst.Type().SizeInBits() {
		l.bd.BuildInstr(types.Load, []*gmir.Register{dst}, ptr)
		return
	}
	ext := types.ZExt
	if inst.Opcode() == types.SExtLoad {
		ext = types.SExt
	}
	l.bd.BuildInstr(ext, []*gmir.Register{dst}, l.bd.BuildLoad(types.Scalar(n), ptr))
}

// lowerBitReverse reverses the bytes, then swaps nibbles, bit pairs and single bits within every byte.
func (l *Legalizer) lowerBitReverse(inst *gmir.Instr) (bool, error) {
	dst, x := inst.Def(0), inst.Use(0)
	t := x.Type()
	switch {
	case t.SizeInBits() == 1:
		l.bd.BuildCopy(dst, x)
		return true, nil
	case !t.IsByteSized():
		return false, configError(l.f, inst, "bit reversal of a width that isn't a whole number of bytes", nil)
	}
	v := x
	if t.SizeInBits() > 8 {
		v = l.bd.BuildCast(types.BSwap, t, x)
	}
	for _, e1 := range []struct {
		n    int64
		mask byte
	}{{4, 0x0f}, {2, 0x33}, {1, 0x55}} {
		m := l.bd.BuildConstant(t, splat(t, e1.mask))
		lo := l.bd.BuildBinary(types.And, l.shiftBy(types.LShr, v, e1.n), m)
		hi := l.shiftBy(types.Shl, l.bd.BuildBinary(types.And, v, m), e1.n)
		v = l.bd.BuildBinary(types.Or, hi, lo)
	}
	l.bd.BuildCopy(dst, v)
	return true, nil
}

// popCount counts the set bits of x into dst: bit pairs, nibbles and bytes are summed in place, then the byte sums
// are folded into the low byte.
func (l *Legalizer) popCount(inst *gmir.Instr, dst, x *gmir.Register) error {
	t := x.Type()
	w := t.SizeInBits()
	if w == 1 {
		l.bd.BuildCopy(dst, l.resize(x, dst.Type()))
		return nil
	}
	if !t.IsByteSized() {
		return configError(l.f, inst, "bit count of a width that isn't a whole number of bytes", nil)
	}
	c := func(b byte) *gmir.Register {
		return l.bd.BuildConstant(t, splat(t, b))
	}
	v := l.bd.BuildBinary(types.Sub, x, l.bd.BuildBinary(types.And, l.shiftBy(types.LShr, x, 1), c(0x55)))
	v = l.bd.BuildBinary(types.Add, l.bd.BuildBinary(types.And, v, c(0x33)),
		l.bd.BuildBinary(types.And, l.shiftBy(types.LShr, v, 2), c(0x33)))
	v = l.bd.BuildBinary(types.And, l.bd.BuildBinary(types.Add, v, l.shiftBy(types.LShr, v, 4)), c(0x0f))
	for s := 8; s < w; s *= 2 {
		v = l.bd.BuildBinary(types.Add, v, l.shiftBy(types.LShr, v, int64(s)))
	}
	if w > 8 {
		v = l.bd.BuildBinary(types.And, v, l.bd.BuildConstant(t, 0xff))
	}
	l.bd.BuildCopy(dst, l.resize(v, dst.Type()))
	return nil
}

// lowerCountZeros turns the bits to count into ones and emits G_CTPOP for them. Leading zeros are counted on the
// complement of the value with its highest set bit smeared to the right, trailing zeros on ^x & (x - 1).
func (l *Legalizer) lowerCountZeros(inst *gmir.Instr) {
	dst, x := inst.Def(0), inst.Use(0)
	t := x.Type()
	ones := l.bd.BuildConstant(t, -1)
	var v *gmir.Register
	if inst.Opcode() == types.CtLZ {
		v = x
		for s := 1; s < t.SizeInBits(); s *= 2 {
			v = l.bd.BuildBinary(types.Or, v, l.shiftBy(types.LShr, v, int64(s)))
		}
		v = l.bd.BuildBinary(types.Xor, v, ones)
	} else {
		below := l.bd.BuildBinary(types.Sub, x, l.bd.BuildConstant(t, 1))
		v = l.bd.BuildBinary(types.And, l.bd.BuildBinary(types.Xor, x, ones), below)
	}
	l.bd.BuildInstr(types.CtPop, []*gmir.Register{dst}, v)
}
