package legalize

import (
	"fmt"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// minMax maps the minimum and maximum operations to the comparison that selects their first operand.
var minMax = map[types.Opcode]types.Predicate{
	types.SMin: types.PredSLT,
	types.SMax: types.PredSGT,
	types.UMin: types.PredULT,
	types.UMax: types.PredUGT,
}

// lower expands Instr inst into simpler generic operations.
func (l *Legalizer) lower(inst *gmir.Instr) (bool, error) {
	op := inst.Opcode()
	l.bd.SetInsertBefore(inst)
	switch op {
	case types.SDivRem, types.UDivRem:
		div, rem := types.SDiv, types.SRem
		if op == types.UDivRem {
			div, rem = types.UDiv, types.URem
		}
		a, b := inst.Use(0), inst.Use(1)
		l.bd.BuildInstr(div, []*gmir.Register{inst.Def(0)}, a, b)
		l.bd.BuildInstr(rem, []*gmir.Register{inst.Def(1)}, a, b)
	case types.SMin, types.SMax, types.UMin, types.UMax:
		a, b := inst.Use(0), inst.Use(1)
		c := l.bd.BuildICmp(minMax[op], a, b)
		l.bd.BuildInstr(types.Select, []*gmir.Register{inst.Def(0)}, c, a, b)
	case types.Abs:
		x := inst.Use(0)
		zero := l.bd.BuildConstant(x.Type(), 0)
		neg := l.bd.BuildBinary(types.Sub, zero, x)
		c := l.bd.BuildICmp(types.PredSLT, x, zero)
		l.bd.BuildInstr(types.Select, []*gmir.Register{inst.Def(0)}, c, neg, x)
	case types.Freeze:
		l.bd.BuildCopy(inst.Def(0), inst.Use(0))
	case types.SExtInReg:
		l.lowerSExtInReg(inst)
	case types.Extract:
		l.lowerExtract(inst)
	case types.Insert:
		l.lowerInsert(inst)
	case types.SExtLoad, types.ZExtLoad:
		l.lowerExtLoad(inst)
	case types.BitReverse:
		return l.lowerBitReverse(inst)
	case types.CtPop:
		return true, l.popCount(inst, inst.Def(0), inst.Use(0))
	case types.CtLZ, types.CtTZ:
		l.lowerCountZeros(inst)
	case types.UAddSat, types.SAddSat, types.USubSat, types.SSubSat:
		l.lowerSatAddSub(inst)
	case types.UShlSat, types.SShlSat:
		l.lowerSatShl(inst)
	case types.UMulO, types.SMulO:
		l.lowerMulO(inst)
	case types.UMulH, types.SMulH:
		return l.lowerMulH(inst)
	case types.FShl, types.FShr:
		l.lowerFunnel(inst)
	default:
		panic(fmt.Sprintf("%s: no lowering", inst))
	}
	return true, nil
}

// shiftBy shifts r by the constant amount n.
func (l *Legalizer) shiftBy(op types.Opcode, r *gmir.Register, n int64) *gmir.Register {
	return l.bd.BuildBinary(op, r, l.bd.BuildConstant(types.S8, n))
}

// signedLimits returns the smallest and the largest signed value of t.
func signedLimits(t types.LLT) (lo, hi int64) {
	return int64(uint64(1) << uint(t.SizeInBits()-1)), int64(t.Mask() >> 1)
}
