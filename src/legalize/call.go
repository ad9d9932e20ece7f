package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerRet returns values wider than a byte as their bytes, least significant first.
func lowerRet(l *Legalizer, inst *gmir.Instr) (bool, error) {
	l.bd.SetInsertBefore(inst)
	l.bd.BuildWith(types.Ret, nil, l.flatten(inst.Uses()), inst.Operands())
	return true, nil
}

// lowerCall passes arguments wider than a byte as their bytes and receives wide results as fresh bytes merged into
// the original result registers after the call.
func lowerCall(l *Legalizer, inst *gmir.Instr) (bool, error) {
	l.bd.SetInsertBefore(inst)
	args := l.flatten(inst.Uses())

	var defs []*gmir.Register
	results := make([][]*gmir.Register, len(inst.Defs()))
	for i1, e1 := range inst.Defs() {
		if callType(e1.Type()) {
			defs = append(defs, e1)
			continue
		}
		for i2 := 0; i2 < e1.Type().SizeInBytes(); i2++ {
			r := l.f.NewRegister(types.S8)
			results[i1] = append(results[i1], r)
			defs = append(defs, r)
		}
	}
	call := l.bd.BuildWith(types.Call, defs, args, inst.Operands())

	l.bd.SetInsertAfter(call)
	for i1, e1 := range inst.Defs() {
		if results[i1] == nil {
			continue
		}
		t := e1.Type()
		if t.IsByteSized() {
			l.bd.BuildMerge(e1, results[i1])
			continue
		}
		whole := l.bd.BuildMergeNew(types.Scalar(8*t.SizeInBytes()), results[i1])
		l.bd.BuildInstr(types.Trunc, []*gmir.Register{e1}, whole)
	}
	return true, nil
}

// flatten splits every value of rs that cannot be passed as is into bytes. Values that aren't a whole number of
// bytes are extended first.
func (l *Legalizer) flatten(rs []*gmir.Register) []*gmir.Register {
	res := make([]*gmir.Register, 0, len(rs))
	for _, e1 := range rs {
		t := e1.Type()
		switch {
		case callType(t):
			res = append(res, e1)
		case t.IsByteSized():
			res = append(res, l.pieces(e1)...)
		default:
			res = append(res, l.pieces(l.bd.BuildCast(types.AnyExt, types.Scalar(8*t.SizeInBytes()), e1))...)
		}
	}
	return res
}

// callType returns true for the types passed and returned without splitting.
func callType(t types.LLT) bool {
	return t == types.S1 || t == types.S8 || t == types.P
}
