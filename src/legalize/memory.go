package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerLoad loads a pointer as an s16 integer.
func lowerLoad(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst := inst.Def(0)
	expect(inst, dst, types.P)
	l.bd.SetInsertBefore(inst)
	l.bd.BuildInstr(types.IntToPtr, []*gmir.Register{dst}, l.bd.BuildLoad(types.S16, inst.Use(0)))
	return true, nil
}

// lowerStore stores a pointer as an s16 integer.
func lowerStore(l *Legalizer, inst *gmir.Instr) (bool, error) {
	v := inst.Use(0)
	expect(inst, v, types.P)
	l.bd.SetInsertBefore(inst)
	l.bd.BuildStore(l.bd.BuildCast(types.PtrToInt, types.S16, v), inst.Use(1))
	return true, nil
}

// lowerPhi carries a pointer PHI as s16. Every incoming pointer is converted at the end of its predecessor and the
// result converted back after the PHIs of the block.
func lowerPhi(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst := inst.Def(0)
	expect(inst, dst, types.P)
	preds := inst.Targets()
	vals := make([]*gmir.Register, len(preds))
	for i1, e1 := range preds {
		l.bd.SetInsertBeforeTerminator(e1)
		vals[i1] = l.bd.BuildCast(types.PtrToInt, types.S16, inst.Use(i1))
	}

	l.bd.SetInsertBefore(inst)
	wide := l.f.NewRegister(types.S16)
	l.bd.BuildPhi(wide, vals, preds)
	l.bd.SetInsertAfterPhis(inst.Block())
	l.bd.BuildInstr(types.IntToPtr, []*gmir.Register{dst}, wide)
	return true, nil
}
