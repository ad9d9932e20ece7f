package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// overflowOf maps the saturating additions and subtractions to the operation reporting their overflow.
var overflowOf = map[types.Opcode]types.Opcode{
	types.UAddSat: types.UAddO,
	types.SAddSat: types.SAddO,
	types.USubSat: types.USubO,
	types.SSubSat: types.SSubO,
}

// lowerSatAddSub selects the saturation value when the wrapping operation overflows. A signed overflow has the
// wrong sign in its result, which picks the limit.
func (l *Legalizer) lowerSatAddSub(inst *gmir.Instr) {
	op := inst.Opcode()
	dst, a, b := inst.Def(0), inst.Use(0), inst.Use(1)
	t := dst.Type()
	o := l.bd.Build(overflowOf[op], []types.LLT{t, types.S1}, a, b)
	r, ov := o.Def(0), o.Def(1)
	var sat *gmir.Register
	switch op {
	case types.UAddSat:
		sat = l.bd.BuildConstant(t, -1)
	case types.USubSat:
		sat = l.bd.BuildConstant(t, 0)
	default:
		lo, hi := signedLimits(t)
		neg := l.bd.BuildICmp(types.PredSLT, r, l.bd.BuildConstant(t, 0))
		sat = l.bd.BuildSelect(neg, l.bd.BuildConstant(t, hi), l.bd.BuildConstant(t, lo))
	}
	l.bd.BuildInstr(types.Select, []*gmir.Register{dst}, ov, sat, r)
}

// lowerSatShl saturates when shifting the result back does not give the operand.
func (l *Legalizer) lowerSatShl(inst *gmir.Instr) {
	dst, a, n := inst.Def(0), inst.Use(0), inst.Use(1)
	t := dst.Type()
	r := l.bd.Build(types.Shl, []types.LLT{t}, a, n).Def(0)
	back, sat := types.LShr, l.bd.BuildConstant(t, -1)
	if inst.Opcode() == types.SShlSat {
		lo, hi := signedLimits(t)
		back = types.AShr
		neg := l.bd.BuildICmp(types.PredSLT, a, l.bd.BuildConstant(t, 0))
		sat = l.bd.BuildSelect(neg, l.bd.BuildConstant(t, lo), l.bd.BuildConstant(t, hi))
	}
	lost := l.bd.BuildICmp(types.PredNE, a, l.bd.Build(back, []types.LLT{t}, r, n).Def(0))
	l.bd.BuildInstr(types.Select, []*gmir.Register{dst}, lost, sat, r)
}

// lowerMulO multiplies and checks the product by dividing it by the first operand. The quotient differs from the
// second operand exactly when the product wrapped, apart from the signed -1 * MIN.
func (l *Legalizer) lowerMulO(inst *gmir.Instr) {
	dst, ov, a, b := inst.Def(0), inst.Def(1), inst.Use(0), inst.Use(1)
	t := dst.Type()
	l.bd.BuildInstr(types.Mul, []*gmir.Register{dst}, a, b)
	nz := l.bd.BuildICmp(types.PredNE, a, l.bd.BuildConstant(t, 0))
	div := types.UDiv
	if inst.Opcode() == types.SMulO {
		div = types.SDiv
	}
	q := l.bd.BuildBinary(div, dst, l.bd.BuildSelect(nz, a, l.bd.BuildConstant(t, 1)))
	wrapped := l.bd.BuildSelect(nz, l.bd.BuildICmp(types.PredNE, q, b), l.bd.BuildConstant(types.S1, 0))
	if inst.Opcode() == types.UMulO {
		l.bd.BuildCopy(ov, wrapped)
		return
	}
	lo, _ := signedLimits(t)
	minusOne := l.bd.BuildICmp(types.PredEQ, a, l.bd.BuildConstant(t, -1))
	l.bd.BuildInstr(types.Select, []*gmir.Register{ov}, minusOne,
		l.bd.BuildICmp(types.PredEQ, b, l.bd.BuildConstant(t, lo)), wrapped)
}

// lowerMulH builds the high half of the double width product from the four products of the operand halves. The
// signed high half subtracts each operand once for the other operand being negative.
func (l *Legalizer) lowerMulH(inst *gmir.Instr) (bool, error) {
	dst, a, b := inst.Def(0), inst.Use(0), inst.Use(1)
	t := dst.Type()
	w := t.SizeInBits()
	if w == 1 {
		l.bd.BuildConstantTo(dst, 0)
		return true, nil
	}
	if w%2 != 0 {
		return false, configError(l.f, inst, "high multiplication of an odd width", nil)
	}
	h := int64(w / 2)
	m := l.bd.BuildConstant(t, int64(t.Mask()>>uint(h)))
	low := func(r *gmir.Register) *gmir.Register {
		return l.bd.BuildBinary(types.And, r, m)
	}
	high := func(r *gmir.Register) *gmir.Register {
		return l.shiftBy(types.LShr, r, h)
	}
	mul := func(x, y *gmir.Register) *gmir.Register {
		return l.bd.BuildBinary(types.Mul, x, y)
	}
	add := func(x, y *gmir.Register) *gmir.Register {
		return l.bd.BuildBinary(types.Add, x, y)
	}
	a0, a1, b0, b1 := low(a), high(a), low(b), high(b)
	p00, p01, p10, p11 := mul(a0, b0), mul(a0, b1), mul(a1, b0), mul(a1, b1)
	mid := add(add(high(p00), low(p01)), low(p10))
	r := add(add(add(p11, high(p01)), high(p10)), high(mid))
	if inst.Opcode() == types.SMulH {
		zero := l.bd.BuildConstant(t, 0)
		for _, e1 := range [][2]*gmir.Register{{a, b}, {b, a}} {
			neg := l.bd.BuildICmp(types.PredSLT, e1[0], zero)
			r = l.bd.BuildBinary(types.Sub, r, l.bd.BuildSelect(neg, e1[1], zero))
		}
	}
	l.bd.BuildCopy(dst, r)
	return true, nil
}

// lowerFunnel shifts the concatenation of two values. With k the amount mod w, fshl(a, b, k) is
// a << k | b >> (w - k) and fshr(a, b, k) is a << (w - k) | b >> k. For a variable amount the shift by w - k is
// split into a shift by 1 and one by w - 1 - k so that k = 0 never shifts by w.
func (l *Legalizer) lowerFunnel(inst *gmir.Instr) {
	dst, a, b, c := inst.Def(0), inst.Use(0), inst.Use(1), inst.Use(2)
	t := dst.Type()
	w := int64(t.SizeInBits())
	fshr := inst.Opcode() == types.FShr

	if k, ok := c.ConstantValue(); ok {
		k = int64((uint64(k) & c.Type().Mask()) % uint64(w))
		switch {
		case k == 0 && fshr:
			l.bd.BuildCopy(dst, b)
		case k == 0:
			l.bd.BuildCopy(dst, a)
		default:
			if fshr {
				k = w - k
			}
			l.bd.BuildInstr(types.Or, []*gmir.Register{dst}, l.shiftBy(types.Shl, a, k), l.shiftBy(types.LShr, b, w-k))
		}
		return
	}

	var k *gmir.Register
	if w&(w-1) == 0 {
		k = l.bd.BuildBinary(types.And, c, l.bd.BuildConstant(t, w-1))
	} else {
		k = l.bd.BuildBinary(types.URem, c, l.bd.BuildConstant(t, w))
	}
	rest := l.bd.BuildBinary(types.Sub, l.bd.BuildConstant(t, w-1), k)
	var left, right *gmir.Register
	if fshr {
		left = l.bd.BuildBinary(types.Shl, l.shiftBy(types.Shl, a, 1), rest)
		right = l.bd.BuildBinary(types.LShr, b, k)
	} else {
		left = l.bd.BuildBinary(types.Shl, a, k)
		right = l.bd.BuildBinary(types.LShr, l.shiftBy(types.LShr, b, 1), rest)
	}
	l.bd.BuildInstr(types.Or, []*gmir.Register{dst}, left, right)
}
