package llvm

import (
	"errors"
	"fmt"
	"strings"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// -------------------
// ----- globals -----
// -------------------

// opFreeze is LLVMFreeze, which the bindings don't name.
const opFreeze llvm.Opcode = 68

// binaryOps maps LLVM binary operators to generic opcodes.
var binaryOps = map[llvm.Opcode]types.Opcode{
	llvm.Add:  types.Add,
	llvm.Sub:  types.Sub,
	llvm.Mul:  types.Mul,
	llvm.UDiv: types.UDiv,
	llvm.SDiv: types.SDiv,
	llvm.URem: types.URem,
	llvm.SRem: types.SRem,
	llvm.Shl:  types.Shl,
	llvm.LShr: types.LShr,
	llvm.AShr: types.AShr,
	llvm.And:  types.And,
	llvm.Or:   types.Or,
	llvm.Xor:  types.Xor,
	llvm.FAdd: types.FAdd,
	llvm.FSub: types.FSub,
	llvm.FMul: types.FMul,
	llvm.FDiv: types.FDiv,
	llvm.FRem: types.FRem,
}

// castOps maps LLVM casts to generic opcodes.
var castOps = map[llvm.Opcode]types.Opcode{
	llvm.Trunc:    types.Trunc,
	llvm.ZExt:     types.ZExt,
	llvm.SExt:     types.SExt,
	llvm.PtrToInt: types.PtrToInt,
	llvm.IntToPtr: types.IntToPtr,
	llvm.FPExt:    types.FPExt,
	llvm.FPTrunc:  types.FPTrunc,
	llvm.FPToSI:   types.FPToSI,
	llvm.FPToUI:   types.FPToUI,
	llvm.SIToFP:   types.SIToFP,
	llvm.UIToFP:   types.UIToFP,
}

// predicates maps LLVM integer predicates to generic ones.
var predicates = map[llvm.IntPredicate]types.Predicate{
	llvm.IntEQ:  types.PredEQ,
	llvm.IntNE:  types.PredNE,
	llvm.IntUGT: types.PredUGT,
	llvm.IntUGE: types.PredUGE,
	llvm.IntULT: types.PredULT,
	llvm.IntULE: types.PredULE,
	llvm.IntSGT: types.PredSGT,
	llvm.IntSGE: types.PredSGE,
	llvm.IntSLT: types.PredSLT,
	llvm.IntSLE: types.PredSLE,
}

// intrinsics maps the prefixes of LLVM intrinsics that have a generic counterpart.
var intrinsics = map[string]types.Opcode{
	"llvm.memcpy.":  types.MemCpy,
	"llvm.memmove.": types.MemMove,
	"llvm.memset.":  types.MemSet,
	"llvm.va_start": types.VAStart,
	"llvm.va_copy":  types.VACopy,
	"llvm.bswap.":   types.BSwap,
	"llvm.smin.":    types.SMin,
	"llvm.smax.":    types.SMax,
	"llvm.umin.":    types.UMin,
	"llvm.umax.":    types.UMax,
	"llvm.abs.":     types.Abs,
	"llvm.fshl.":    types.FShl,
	"llvm.fshr.":    types.FShr,

	"llvm.ctlz.":       types.CtLZ,
	"llvm.cttz.":       types.CtTZ,
	"llvm.ctpop.":      types.CtPop,
	"llvm.bitreverse.": types.BitReverse,
	"llvm.uadd.sat.":   types.UAddSat,
	"llvm.sadd.sat.":   types.SAddSat,
	"llvm.usub.sat.":   types.USubSat,
	"llvm.ssub.sat.":   types.SSubSat,
	"llvm.ushl.sat.":   types.UShlSat,
	"llvm.sshl.sat.":   types.SShlSat,
}

// ignored lists the prefixes of intrinsics without runtime effect on the legalizer's input.
var ignored = []string{
	"llvm.va_end",
	"llvm.lifetime.",
	"llvm.dbg.",
	"llvm.assume",
}

// ---------------------
// ----- functions -----
// ---------------------

// instr translates the LLVM instruction inst at the end of the current block.
func (tr *translator) instr(inst llvm.Value) error {
	op := inst.InstructionOpcode()
	if g, ok := binaryOps[op]; ok {
		return tr.build(g, inst, operands(inst)...)
	}
	if g, ok := castOps[op]; ok {
		return tr.build(g, inst, inst.Operand(0))
	}

	switch op {
	case llvm.BitCast:
		if inst.Type().TypeKind() != llvm.PointerTypeKind {
			return errors.New("bitcast of non-pointer value")
		}
		r, err := tr.operand(tr.bd, inst.Operand(0))
		if err != nil {
			return err
		}
		dst, err := tr.reg(inst)
		if err != nil {
			return err
		}
		tr.bd.BuildCopy(dst, r)
	case llvm.ICmp:
		p, ok := predicates[inst.IntPredicate()]
		if !ok {
			return fmt.Errorf("unknown integer predicate %d", inst.IntPredicate())
		}
		uses, err := tr.operands(inst, 0, 2)
		if err != nil {
			return err
		}
		dst, err := tr.reg(inst)
		if err != nil {
			return err
		}
		tr.bd.BuildICmpTo(dst, p, uses[0], uses[1])
	case llvm.FCmp:
		return tr.build(types.FCmp, inst, operands(inst)...)
	case llvm.Select:
		return tr.build(types.Select, inst, operands(inst)...)
	case llvm.Alloca:
		return tr.alloca(inst)
	case llvm.GetElementPtr:
		return tr.gep(inst)
	case llvm.Load:
		return tr.build(types.Load, inst, inst.Operand(0))
	case llvm.Store:
		uses, err := tr.operands(inst, 0, 2)
		if err != nil {
			return err
		}
		tr.bd.BuildStore(uses[0], uses[1])
	case llvm.PHI:
		return tr.phi(inst)
	case llvm.Call:
		return tr.call(inst)
	case llvm.VAArg:
		if !tr.f.IsVariadic() {
			return errors.New("va_arg in a function without variadic arguments")
		}
		return tr.build(types.VAArg, inst, inst.Operand(0))
	case opFreeze:
		return tr.build(types.Freeze, inst, inst.Operand(0))
	case llvm.Br:
		if inst.OperandsCount() == 1 {
			tr.bd.BuildBr(tr.blocks[inst.Operand(0).AsBasicBlock()])
			return nil
		}
		cond, err := tr.operand(tr.bd, inst.Operand(0))
		if err != nil {
			return err
		}
		// The false destination precedes the true destination in the operand list.
		tr.bd.BuildBrCond(cond, tr.blocks[inst.Operand(2).AsBasicBlock()], tr.blocks[inst.Operand(1).AsBasicBlock()])
	case llvm.Ret:
		uses, err := tr.operands(inst, 0, inst.OperandsCount())
		if err != nil {
			return err
		}
		tr.bd.BuildRet(uses...)
	default:
		return fmt.Errorf("unsupported instruction (LLVM opcode %d)", op)
	}
	return nil
}

// operands returns registers for the operands of inst in the range [from, to).
func (tr *translator) operands(inst llvm.Value, from, to int) ([]*gmir.Register, error) {
	res := make([]*gmir.Register, 0, to-from)
	for i1 := from; i1 < to; i1++ {
		r, err := tr.operand(tr.bd, inst.Operand(i1))
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

// build emits generic instruction op defining the result of inst from the values vs.
func (tr *translator) build(op types.Opcode, inst llvm.Value, vs ...llvm.Value) error {
	uses := make([]*gmir.Register, len(vs))
	for i1, e1 := range vs {
		r, err := tr.operand(tr.bd, e1)
		if err != nil {
			return err
		}
		uses[i1] = r
	}
	dst, err := tr.reg(inst)
	if err != nil {
		return err
	}
	tr.bd.BuildInstr(op, []*gmir.Register{dst}, uses...)
	return nil
}

// phi translates a PHI. Constant incoming values are materialised in the prologue, which dominates every block.
func (tr *translator) phi(inst llvm.Value) error {
	n := inst.IncomingCount()
	vals := make([]*gmir.Register, n)
	preds := make([]*gmir.Block, n)
	for i1 := 0; i1 < n; i1++ {
		r, err := tr.operand(tr.pro, inst.IncomingValue(i1))
		if err != nil {
			return err
		}
		vals[i1] = r
		preds[i1] = tr.blocks[inst.IncomingBlock(i1)]
	}
	dst, err := tr.reg(inst)
	if err != nil {
		return err
	}
	tr.bd.BuildPhi(dst, vals, preds)
	return nil
}

// alloca translates a stack allocation. A constant sized allocation in the entry block becomes a frame slot, any
// other allocation adjusts the stack pointer at run time.
func (tr *translator) alloca(inst llvm.Value) error {
	size, err := sizeOf(inst.Type().ElementType())
	if err != nil {
		return err
	}
	dst, err := tr.reg(inst)
	if err != nil {
		return err
	}
	count := inst.Operand(0)
	if c := count.IsAConstantInt(); !c.IsNil() && inst.InstructionParent() == tr.fn.EntryBasicBlock() {
		slot := tr.f.CreateStackSlot(size * int(c.ZExtValue()))
		tr.bd.BuildWith(types.FrameIndex, []*gmir.Register{dst}, nil,
			gmir.Operands{Imm: int64(slot), Part: gmir.ArgWhole})
		return nil
	}

	n, err := tr.operand(tr.bd, count)
	if err != nil {
		return err
	}
	if n.Type().SizeInBits() < types.S16.SizeInBits() {
		n = tr.bd.BuildCast(types.ZExt, types.S16, n)
	} else {
		n = resize(tr.bd, n, types.S16)
	}
	n = scale(tr.bd, n, int64(size))
	tr.bd.BuildWith(types.DynStackAlloc, []*gmir.Register{dst}, []*gmir.Register{n},
		gmir.Operands{Imm: int64(inst.Alignment()), Part: gmir.ArgWhole})
	return nil
}

// gep translates an address computation into a G_PTR_ADD of the summed byte offset.
func (tr *translator) gep(inst llvm.Value) error {
	ops := operands(inst)
	off, terms, err := gepTerms(ops[0], ops[1:])
	if err != nil {
		return err
	}
	base, err := tr.operand(tr.bd, ops[0])
	if err != nil {
		return err
	}
	dst, err := tr.reg(inst)
	if err != nil {
		return err
	}
	if len(terms) == 0 && off == 0 {
		tr.bd.BuildCopy(dst, base)
		return nil
	}

	var sum *gmir.Register
	for _, e1 := range terms {
		r, err := tr.operand(tr.bd, e1.v)
		if err != nil {
			return err
		}
		r = scale(tr.bd, resize(tr.bd, r, types.S16), e1.scale)
		if sum == nil {
			sum = r
		} else {
			sum = tr.bd.BuildBinary(types.Add, sum, r)
		}
	}
	if off != 0 || sum == nil {
		c := tr.bd.BuildConstant(types.S16, off)
		if sum == nil {
			sum = c
		} else {
			sum = tr.bd.BuildBinary(types.Add, sum, c)
		}
	}
	tr.bd.BuildInstr(types.PtrAdd, []*gmir.Register{dst}, base, sum)
	return nil
}

// call translates a call. Intrinsics with a generic counterpart become that opcode, other intrinsics are rejected
// unless they have no effect, and calls of named functions become G_CALL.
func (tr *translator) call(inst llvm.Value) error {
	callee := inst.CalledValue()
	if callee.IsAFunction().IsNil() {
		return errors.New("indirect calls are not supported")
	}
	name := callee.Name()
	args := inst.OperandsCount() - 1

	if strings.HasPrefix(name, "llvm.") {
		for _, e1 := range ignored {
			if strings.HasPrefix(name, e1) {
				return nil
			}
		}
		for prefix, op := range intrinsics {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			switch op {
			case types.MemCpy, types.MemMove, types.MemSet:
				// The trailing volatile flag is dropped.
				uses, err := tr.operands(inst, 0, 3)
				if err != nil {
					return err
				}
				tr.bd.BuildInstr(op, nil, uses...)
			case types.VAStart:
				if !tr.f.IsVariadic() {
					return errors.New("va_start in a function without variadic arguments")
				}
				uses, err := tr.operands(inst, 0, 1)
				if err != nil {
					return err
				}
				tr.bd.BuildInstr(op, nil, uses...)
			case types.VACopy:
				uses, err := tr.operands(inst, 0, 2)
				if err != nil {
					return err
				}
				tr.bd.BuildInstr(op, nil, uses...)
			case types.BSwap, types.Abs, types.CtLZ, types.CtTZ, types.CtPop, types.BitReverse:
				// The poison flags of abs, ctlz and cttz are dropped.
				return tr.build(op, inst, inst.Operand(0))
			case types.FShl, types.FShr:
				// Funnel shifts are rotates when both halves are the same value.
				if inst.Operand(0) == inst.Operand(1) {
					rot := types.RotL
					if op == types.FShr {
						rot = types.RotR
					}
					return tr.build(rot, inst, inst.Operand(0), inst.Operand(2))
				}
				return tr.build(op, inst, inst.Operand(0), inst.Operand(1), inst.Operand(2))
			default:
				return tr.build(op, inst, inst.Operand(0), inst.Operand(1))
			}
			return nil
		}
		return fmt.Errorf("unsupported intrinsic %s", name)
	}

	uses, err := tr.operands(inst, 0, args)
	if err != nil {
		return err
	}
	var results []*gmir.Register
	if inst.Type().TypeKind() != llvm.VoidTypeKind {
		r, err := tr.reg(inst)
		if err != nil {
			return err
		}
		results = append(results, r)
	}
	tr.bd.BuildCall(name, results, uses)
	return nil
}
