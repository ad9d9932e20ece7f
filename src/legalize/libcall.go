package legalize

import (
	"fmt"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// libcallBase holds the name patterns of the runtime helpers, completed by the machine mode of the operand width.
var libcallBase = map[types.Opcode]string{
	types.Mul:  "__mul%s3",
	types.SDiv: "__div%s3",
	types.UDiv: "__udiv%s3",
	types.SRem: "__mod%s3",
	types.URem: "__umod%s3",
	types.Shl:  "__ashl%s3",
	types.LShr: "__lshr%s3",
	types.AShr: "__ashr%s3",
}

// libcallMem holds the names of the memory helpers.
var libcallMem = map[types.Opcode]string{
	types.MemCpy:  "memcpy",
	types.MemMove: "memmove",
	types.MemSet:  "memset",
}

// LibcallName returns the runtime helper implementing op on operands of the given width in bits.
func LibcallName(op types.Opcode, bits int) (string, error) {
	if name, ok := libcallMem[op]; ok {
		return name, nil
	}
	base, ok := libcallBase[op]
	if !ok {
		return "", fmt.Errorf("no runtime helper for %s", op)
	}
	var mode string
	switch bits {
	case 8:
		mode = "qi"
	case 16:
		mode = "hi"
	case 32:
		mode = "si"
	case 64:
		mode = "di"
	default:
		return "", fmt.Errorf("no runtime helper for %s on s%d", op, bits)
	}
	return fmt.Sprintf(base, mode), nil
}

// libcall replaces Instr inst with a call to its runtime helper. Operands are passed in order and the result is
// written to the original def.
func (l *Legalizer) libcall(inst *gmir.Instr) (bool, error) {
	if _, ok := libcallMem[inst.Opcode()]; ok {
		return l.memLibcall(inst)
	}
	dst := inst.Def(0)
	name, err := LibcallName(inst.Opcode(), dst.Type().SizeInBits())
	if err != nil {
		return false, configError(l.f, inst, "libcall", err)
	}
	l.bd.SetInsertBefore(inst)
	l.bd.BuildCall(name, []*gmir.Register{dst}, inst.Uses())
	return true, nil
}

// shiftLibcall replaces a shift with a call to its runtime helper, which takes the value and a byte amount.
func (l *Legalizer) shiftLibcall(inst *gmir.Instr) (bool, error) {
	expect(inst, inst.Use(1), types.S8)
	return l.libcall(inst)
}

// memLibcall replaces G_MEMCPY, G_MEMMOVE and G_MEMSET with calls taking a 16-bit length. The fill value of memset
// is passed as a byte.
func (l *Legalizer) memLibcall(inst *gmir.Instr) (bool, error) {
	op := inst.Opcode()
	l.bd.SetInsertBefore(inst)
	args := append([]*gmir.Register(nil), inst.Uses()...)
	if op == types.MemSet {
		args[1] = l.resize(args[1], types.S8)
	}
	args[2] = l.resize(args[2], types.S16)
	l.bd.BuildCall(libcallMem[op], nil, args)
	return true, nil
}

// resize zero extends or truncates r to type t.
func (l *Legalizer) resize(r *gmir.Register, t types.LLT) *gmir.Register {
	switch w := r.Type().SizeInBits(); {
	case w < t.SizeInBits():
		return l.bd.BuildCast(types.ZExt, t, r)
	case w > t.SizeInBits():
		return l.bd.BuildCast(types.Trunc, t, r)
	}
	return r
}
