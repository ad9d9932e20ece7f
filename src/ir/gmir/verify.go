package gmir

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// arity holds the number of defs and uses of an opcode. Negative counts are variable.
type arity struct {
	defs int
	uses int
}

// ---------------------
// ----- Constants -----
// ---------------------

// maxScalarBits is the widest scalar accepted.
const maxScalarBits = 64

// -------------------
// ----- Globals -----
// -------------------

// arities lists the fixed operand counts of opcodes. Opcodes that aren't listed are not checked.
var arities = map[types.Opcode]arity{
	types.Constant:      {1, 0},
	types.ImplicitDef:   {1, 0},
	types.FrameIndex:    {1, 0},
	types.GlobalValue:   {1, 0},
	types.Arg:           {1, 0},
	types.Copy:          {1, 1},
	types.AnyExt:        {1, 1},
	types.ZExt:          {1, 1},
	types.SExt:          {1, 1},
	types.Trunc:         {1, 1},
	types.IntToPtr:      {1, 1},
	types.PtrToInt:      {1, 1},
	types.BSwap:         {1, 1},
	types.Abs:           {1, 1},
	types.ICmp:          {1, 2},
	types.Select:        {1, 3},
	types.PtrAdd:        {1, 2},
	types.SDivRem:       {2, 2},
	types.UDivRem:       {2, 2},
	types.UAddO:         {2, 2},
	types.SAddO:         {2, 2},
	types.USubO:         {2, 2},
	types.SSubO:         {2, 2},
	types.UAddE:         {2, 3},
	types.SAddE:         {2, 3},
	types.USubE:         {2, 3},
	types.SSubE:         {2, 3},
	types.SExtInReg:     {1, 1},
	types.Extract:       {1, 1},
	types.Insert:        {1, 2},
	types.BitReverse:    {1, 1},
	types.Freeze:        {1, 1},
	types.UMulO:         {2, 2},
	types.SMulO:         {2, 2},
	types.FShl:          {1, 3},
	types.FShr:          {1, 3},
	types.CtLZ:          {1, 1},
	types.CtTZ:          {1, 1},
	types.CtPop:         {1, 1},
	types.Load:          {1, 1},
	types.SExtLoad:      {1, 1},
	types.ZExtLoad:      {1, 1},
	types.Store:         {0, 2},
	types.MemCpy:        {0, 3},
	types.MemMove:       {0, 3},
	types.MemSet:        {0, 3},
	types.Br:            {0, 0},
	types.BrCond:        {0, 1},
	types.BrCondImm:     {0, 1},
	types.VAStart:       {0, 1},
	types.VAArg:         {1, 1},
	types.VACopy:        {0, 2},
	types.DynStackAlloc: {1, 1},
	types.Sbc:           {5, 3},
	types.ShlE:          {2, 2},
	types.LShrE:         {2, 2},
	types.Index:         {1, 2},
	types.SetSPHi:       {0, 1},
	types.SetSPLo:       {0, 1},
	types.ReadSP:        {1, 0},
}

// binaryOps lists the opcodes with one def and two uses of the same type.
var binaryOps = []types.Opcode{
	types.Add, types.Sub, types.And, types.Or, types.Xor, types.Mul, types.SDiv, types.SRem, types.UDiv, types.URem,
	types.SMin, types.SMax, types.UMin, types.UMax, types.Shl, types.LShr, types.AShr, types.RotL, types.RotR,
	types.UAddSat, types.SAddSat, types.USubSat, types.SSubSat, types.UShlSat, types.SShlSat, types.UMulH, types.SMulH,
	types.FAdd, types.FSub, types.FMul, types.FDiv, types.FRem,
}

func init() {
	for _, e1 := range binaryOps {
		arities[e1] = arity{1, 2}
	}
}

// ---------------------
// ----- Functions -----
// ---------------------

// ValidType returns an error if t is outside the set of types the legalizer accepts as input.
func ValidType(t types.LLT) error {
	switch {
	case t.IsPointer():
		if t.SizeInBits() != types.PointerBits {
			return fmt.Errorf("pointer type of %d bits, only %d-bit pointers are supported", t.SizeInBits(),
				types.PointerBits)
		}
	case t.IsScalar():
		if n := t.SizeInBits(); n != 1 && (n%8 != 0 || n > maxScalarBits) {
			return fmt.Errorf("scalar type %s, scalars must be s1 or a multiple of 8 bits up to s%d", t,
				maxScalarBits)
		}
	default:
		return errors.New("invalid type")
	}
	return nil
}

// Verify checks that Module m satisfies the structural contract of the legalizer input.
func Verify(m *Module) error {
	var errs []error
	for _, e1 := range m.functions {
		if err := VerifyFunction(e1); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VerifyFunction checks the structure of a single function.
func VerifyFunction(f *Function) error {
	var errs []error
	fail := func(b *Block, inst *Instr, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		if inst != nil {
			msg = fmt.Sprintf("%s: %s", inst, msg)
		}
		errs = append(errs, fmt.Errorf("function @%s, %s: %s", f.name, b.Name(), msg))
	}

	if len(f.blocks) == 0 {
		return fmt.Errorf("function @%s has no basic blocks", f.name)
	}
	for i1, e1 := range append(append([]types.LLT(nil), f.params...), f.results...) {
		if err := ValidType(e1); err != nil {
			errs = append(errs, fmt.Errorf("function @%s, signature type %d: %w", f.name, i1, err))
		}
	}
	if s := f.frame.VarArgsSlot; s != NoSlot && (s < 0 || s >= len(f.frame.Slots)) {
		errs = append(errs, fmt.Errorf("function @%s: variadic save area %s%d does not exist", f.name,
			labelStackPrefix, s))
	}

	defs := make(map[*Register]*Instr, len(f.regs))
	for _, e1 := range f.blocks {
		if e1.Terminator() == nil {
			fail(e1, nil, "block is not terminated")
		}
		for _, e2 := range MisplacedStackWrites(e1) {
			fail(e1, e2, "stack pointer halves must be written as an adjacent G_SET_SP_HI, G_SET_SP_LO pair")
		}
		phis := true
		for i2, e2 := range e1.instrs {
			if e2.op == types.Phi {
				if !phis {
					fail(e1, e2, "PHI after non-PHI instruction")
				}
			} else {
				phis = false
			}
			if e2.op.IsTerminator() && i2 != len(e1.instrs)-1 {
				fail(e1, e2, "terminator in the middle of the block")
			}
			if a, ok := arities[e2.op]; ok && (len(e2.defs) != a.defs || len(e2.uses) != a.uses) {
				fail(e1, e2, "expected %d defs and %d uses", a.defs, a.uses)
				continue
			}
			for _, e3 := range e2.defs {
				if prev, ok := defs[e3]; ok {
					fail(e1, e2, "%s is already defined by instruction %d", e3, prev.id)
				}
				defs[e3] = e2
				if err := ValidType(e3.typ); err != nil {
					fail(e1, e2, "%s: %s", e3, err)
				}
			}
			for _, e3 := range e2.targets {
				if e3 == nil || f.Block(e3.id) != e3 {
					fail(e1, e2, "target is not a block of the function")
				}
			}
			if err := verifyOperands(f, e2); err != nil {
				fail(e1, e2, "%s", err)
			}
		}
	}
	for _, e1 := range f.blocks {
		for _, e2 := range e1.instrs {
			for _, e3 := range e2.uses {
				if _, ok := defs[e3]; !ok {
					fail(e1, e2, "%s is used but never defined", e3)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// verifyOperands checks the opcode specific operand shapes of inst.
func verifyOperands(f *Function, inst *Instr) error {
	switch inst.op {
	case types.Arg:
		if inst.imm < 0 || int(inst.imm) >= len(f.params) {
			return fmt.Errorf("parameter %d does not exist", inst.imm)
		}
		if inst.part != ArgWhole && (inst.part < 0 || inst.part >= f.params[inst.imm].SizeInBytes()) {
			return fmt.Errorf("parameter %d has no byte %d", inst.imm, inst.part)
		}
	case types.FrameIndex:
		if inst.imm < 0 || int(inst.imm) >= len(f.frame.Slots) {
			return fmt.Errorf("frame slot %d does not exist", inst.imm)
		}
	case types.ICmp:
		if inst.defs[0].typ != types.S1 {
			return errors.New("comparison result must be s1")
		}
		if inst.uses[0].typ != inst.uses[1].typ {
			return errors.New("comparison operands differ in type")
		}
	case types.Select:
		if inst.uses[0].typ != types.S1 {
			return errors.New("select test must be s1")
		}
	case types.BrCond, types.BrCondImm:
		if inst.uses[0].typ != types.S1 {
			return errors.New("branch condition must be s1")
		}
		if len(inst.targets) != 2 {
			return errors.New("conditional branch needs two targets")
		}
	case types.Br:
		if len(inst.targets) != 1 {
			return errors.New("branch needs one target")
		}
	case types.Phi:
		if len(inst.defs) != 1 || len(inst.uses) != len(inst.targets) {
			return errors.New("PHI needs one def and a block for every incoming value")
		}
	case types.PtrAdd, types.Index:
		if !inst.uses[0].typ.IsPointer() {
			return errors.New("base must be a pointer")
		}
	case types.Load, types.VAArg, types.VAStart:
		if !inst.uses[0].typ.IsPointer() {
			return errors.New("address must be a pointer")
		}
	case types.SExtLoad, types.ZExtLoad:
		if !inst.uses[0].typ.IsPointer() {
			return errors.New("address must be a pointer")
		}
		if t := inst.defs[0].typ; inst.imm < 1 || inst.imm*8 > int64(t.SizeInBits()) {
			return fmt.Errorf("cannot extend a %d byte load to %s", inst.imm, t)
		}
	case types.SExtInReg:
		if t := inst.defs[0].typ; inst.imm < 1 || inst.imm > int64(t.SizeInBits()) || inst.uses[0].typ != t {
			return fmt.Errorf("cannot sign extend bit %d of %s", inst.imm-1, t)
		}
	case types.Extract:
		if !fits(inst.defs[0].typ, inst.imm, inst.uses[0].typ) {
			return fmt.Errorf("%s at bit %d does not fit in %s", inst.defs[0].typ, inst.imm, inst.uses[0].typ)
		}
	case types.Insert:
		if !fits(inst.uses[1].typ, inst.imm, inst.defs[0].typ) || inst.uses[0].typ != inst.defs[0].typ {
			return fmt.Errorf("%s at bit %d does not fit in %s", inst.uses[1].typ, inst.imm, inst.defs[0].typ)
		}
	case types.FShl, types.FShr:
		t := inst.defs[0].typ
		if inst.uses[0].typ != t || inst.uses[1].typ != t || inst.uses[2].typ != t {
			return errors.New("funnel shift operands differ in type")
		}
	case types.SetSPHi, types.SetSPLo:
		if !slices.Contains(inst.implicit, PhysRS0) || !slices.Contains(inst.impDefs, PhysRS0) {
			return fmt.Errorf("stack pointer write must define and read $%s", PhysRS0)
		}
	case types.Store:
		if !inst.uses[1].typ.IsPointer() {
			return errors.New("address must be a pointer")
		}
	case types.Ret:
		n := 0
		for _, e1 := range inst.uses {
			n += e1.typ.SizeInBytes()
		}
		m := 0
		for _, e1 := range f.results {
			m += e1.SizeInBytes()
		}
		if n != m {
			return fmt.Errorf("returns %d bytes, function declares %d", n, m)
		}
	case types.MergeValues:
		n := 0
		for _, e1 := range inst.uses {
			n += e1.typ.SizeInBits()
		}
		if len(inst.defs) != 1 || n != inst.defs[0].typ.SizeInBits() {
			return errors.New("pieces don't add up to the merged width")
		}
	case types.UnmergeValues:
		n := 0
		for _, e1 := range inst.defs {
			n += e1.typ.SizeInBits()
		}
		if len(inst.uses) != 1 || n != inst.uses[0].typ.SizeInBits() {
			return errors.New("pieces don't add up to the split width")
		}
	}
	return nil
}

// fits returns true if a field of type t at bit offset off lies within a value of type in.
func fits(t types.LLT, off int64, in types.LLT) bool {
	return off >= 0 && off+int64(t.SizeInBits()) <= int64(in.SizeInBits())
}

// MisplacedStackWrites returns the stack pointer writes of Block b that are not part of an adjacent high, low pair.
func MisplacedStackWrites(b *Block) []*Instr {
	var res []*Instr
	for i1, e1 := range b.instrs {
		switch e1.op {
		case types.SetSPHi:
			if i1+1 == len(b.instrs) || b.instrs[i1+1].op != types.SetSPLo {
				res = append(res, e1)
			}
		case types.SetSPLo:
			if i1 == 0 || b.instrs[i1-1].op != types.SetSPHi {
				res = append(res, e1)
			}
		}
	}
	return res
}
