package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// lowerVAStart stores the address of the variadic argument save area in the va_list cell.
func lowerVAStart(l *Legalizer, inst *gmir.Instr) (bool, error) {
	slot := l.f.Frame().VarArgsSlot
	if slot == gmir.NoSlot {
		return false, configError(l.f, inst, "function has no variadic argument save area", nil)
	}
	l.bd.SetInsertBefore(inst)
	l.bd.BuildStore(l.bd.BuildFrameIndex(slot), inst.Use(0))
	return true, nil
}

// lowerVAArg reads the next variadic argument. The cursor is loaded from the va_list cell, the value loaded from
// the cursor and the cursor advanced past the value and stored back.
func lowerVAArg(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, cell := inst.Def(0), inst.Use(0)
	l.bd.SetInsertBefore(inst)
	cur := l.bd.BuildLoad(types.P, cell)
	l.bd.BuildInstr(types.Load, []*gmir.Register{dst}, cur)
	size := l.bd.BuildConstant(types.S16, int64(dst.Type().SizeInBytes()))
	l.bd.BuildStore(l.bd.BuildPtrAdd(cur, size), cell)
	return true, nil
}

// lowerVACopy copies the cursor of one va_list cell into another.
func lowerVACopy(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, src := inst.Use(0), inst.Use(1)
	l.bd.SetInsertBefore(inst)
	l.bd.BuildStore(l.bd.BuildLoad(types.P, src), dst)
	return true, nil
}

// lowerDynStackAlloc moves the stack pointer down by the requested size, rounds it down to the alignment and
// returns the new top of stack. The high byte of the stack pointer is written before the low byte.
func lowerDynStackAlloc(l *Legalizer, inst *gmir.Instr) (bool, error) {
	dst, size := inst.Def(0), inst.Use(0)
	expect(inst, size, types.S16)
	l.bd.SetInsertBefore(inst)
	sp := l.bd.BuildCast(types.PtrToInt, types.S16, l.bd.BuildReadSP())
	v := l.bd.BuildBinary(types.Sub, sp, size)
	if align := inst.Imm(); align > 1 {
		v = l.bd.BuildBinary(types.And, v, l.bd.BuildConstant(types.S16, -align))
	}
	pcs := l.bd.BuildUnmerge(types.S8, v)
	l.bd.BuildSetSP(types.SetSPHi, pcs[1])
	l.bd.BuildSetSP(types.SetSPLo, pcs[0])
	l.bd.BuildInstr(types.IntToPtr, []*gmir.Register{dst}, v)
	return true, nil
}
