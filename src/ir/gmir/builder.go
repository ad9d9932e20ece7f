package gmir

import (
	"fmt"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Observer is notified about every instruction a Builder creates.
type Observer func(inst *Instr)

// Builder creates instructions at an insertion point. New instructions are placed before the insertion instruction,
// so consecutive builds appear in program order.
type Builder struct {
	f        *Function // Function being built.
	b        *Block    // Insertion block.
	before   *Instr    // Insertion instruction, nil appends to the block.
	observer Observer  // Optional creation hook.
}

// Operands holds the non-register operands of an instruction.
type Operands struct {
	Pred         types.Predicate // Comparison predicate.
	Imm          int64           // Immediate.
	Part         int             // Byte part of G_ARG.
	Sym          string          // Symbol.
	Targets      []*Block        // Branch targets or incoming blocks.
	Implicit     []string        // Implicitly read physical registers.
	ImplicitDefs []string        // Implicitly written physical registers.
}

// ---------------------
// ----- Constants -----
// ---------------------

// -------------------
// ----- Globals -----
// -------------------

// ---------------------
// ----- Functions -----
// ---------------------

// NewBuilder returns a Builder for Function f that appends to the entry block.
func NewBuilder(f *Function) *Builder {
	return &Builder{f: f, b: f.Entry()}
}

// Function returns the function being built.
func (bd *Builder) Function() *Function {
	return bd.f
}

// Block returns the current insertion block.
func (bd *Builder) Block() *Block {
	return bd.b
}

// SetObserver installs the creation hook o.
func (bd *Builder) SetObserver(o Observer) {
	bd.observer = o
}

// SetInsertPt places new instructions in Block b before Instr before, or at the end of b if before is nil.
func (bd *Builder) SetInsertPt(b *Block, before *Instr) {
	bd.b = b
	bd.before = before
}

// SetInsertBefore places new instructions right before Instr inst.
func (bd *Builder) SetInsertBefore(inst *Instr) {
	bd.SetInsertPt(inst.b, inst)
}

// SetInsertAfter places new instructions right after Instr inst. Instructions after a PHI are placed after all PHIs.
func (bd *Builder) SetInsertAfter(inst *Instr) {
	if inst.op == types.Phi {
		bd.SetInsertAfterPhis(inst.b)
		return
	}
	b := inst.b
	if i := b.index(inst) + 1; i < len(b.instrs) {
		bd.SetInsertPt(b, b.instrs[i])
	} else {
		bd.SetInsertPt(b, nil)
	}
}

// SetInsertAtEnd places new instructions at the end of Block b.
func (bd *Builder) SetInsertAtEnd(b *Block) {
	bd.SetInsertPt(b, nil)
}

// SetInsertBeforeTerminator places new instructions before the terminator of Block b.
func (bd *Builder) SetInsertBeforeTerminator(b *Block) {
	bd.SetInsertPt(b, b.Terminator())
}

// SetInsertAfterPhis places new instructions right after the PHIs of Block b.
func (bd *Builder) SetInsertAfterPhis(b *Block) {
	bd.SetInsertPt(b, b.FirstNonPhi())
}

// BuildWith creates an instruction with the given registers and operands. Def registers are re-pointed to the
// new instruction.
func (bd *Builder) BuildWith(op types.Opcode, defs, uses []*Register, ops Operands) *Instr {
	if bd.b == nil {
		panic(fmt.Sprintf("function %s: no insertion block for %s", bd.f.name, op))
	}
	inst := &Instr{
		id:       bd.f.nextInstrId(),
		op:       op,
		defs:     append([]*Register(nil), defs...),
		uses:     append([]*Register(nil), uses...),
		pred:     ops.Pred,
		imm:      ops.Imm,
		part:     ops.Part,
		sym:      ops.Sym,
		targets:  append([]*Block(nil), ops.Targets...),
		implicit: append([]string(nil), ops.Implicit...),
		impDefs:  append([]string(nil), ops.ImplicitDefs...),
	}
	for _, e1 := range inst.defs {
		if e1 == nil {
			panic(fmt.Sprintf("function %s: %s with <nil> def", bd.f.name, op))
		}
		e1.def = inst
	}
	for _, e1 := range inst.uses {
		if e1 == nil {
			panic(fmt.Sprintf("function %s: %s with <nil> use", bd.f.name, op))
		}
		e1.addUser(inst)
	}
	bd.b.insert(inst, bd.before)
	if bd.observer != nil {
		bd.observer(inst)
	}
	return inst
}

// BuildInstr creates an instruction without extra operands.
func (bd *Builder) BuildInstr(op types.Opcode, defs []*Register, uses ...*Register) *Instr {
	return bd.BuildWith(op, defs, uses, Operands{Part: ArgWhole})
}

// Build creates an instruction with fresh def registers of the given types.
func (bd *Builder) Build(op types.Opcode, defTypes []types.LLT, uses ...*Register) *Instr {
	defs := make([]*Register, len(defTypes))
	for i1, e1 := range defTypes {
		defs[i1] = bd.f.NewRegister(e1)
	}
	return bd.BuildInstr(op, defs, uses...)
}

// BuildConstantTo defines dst as the constant v.
func (bd *Builder) BuildConstantTo(dst *Register, v int64) *Instr {
	return bd.BuildWith(types.Constant, []*Register{dst}, nil, Operands{Imm: normalise(v, dst.typ), Part: ArgWhole})
}

// BuildConstant returns a new register holding constant v of type t.
func (bd *Builder) BuildConstant(t types.LLT, v int64) *Register {
	r := bd.f.NewRegister(t)
	bd.BuildConstantTo(r, v)
	return r
}

// BuildUndef returns a new register of type t with undefined contents.
func (bd *Builder) BuildUndef(t types.LLT) *Register {
	return bd.Build(types.ImplicitDef, []types.LLT{t}).defs[0]
}

// BuildCopy defines dst as a copy of src.
func (bd *Builder) BuildCopy(dst, src *Register) *Instr {
	return bd.BuildInstr(types.Copy, []*Register{dst}, src)
}

// BuildCast returns a new register of type t holding the conversion op of src.
func (bd *Builder) BuildCast(op types.Opcode, t types.LLT, src *Register) *Register {
	return bd.Build(op, []types.LLT{t}, src).defs[0]
}

// BuildBinary returns a new register holding a op b, of the type of a.
func (bd *Builder) BuildBinary(op types.Opcode, a, b *Register) *Register {
	return bd.Build(op, []types.LLT{a.typ}, a, b).defs[0]
}

// BuildNot returns the boolean negation of s1 register a.
func (bd *Builder) BuildNot(a *Register) *Register {
	return bd.BuildBinary(types.Xor, a, bd.BuildConstant(types.S1, -1))
}

// BuildICmpTo defines dst as the comparison pred of a and b.
func (bd *Builder) BuildICmpTo(dst *Register, pred types.Predicate, a, b *Register) *Instr {
	return bd.BuildWith(types.ICmp, []*Register{dst}, []*Register{a, b}, Operands{Pred: pred, Part: ArgWhole})
}

// BuildICmp returns a new s1 register holding the comparison pred of a and b.
func (bd *Builder) BuildICmp(pred types.Predicate, a, b *Register) *Register {
	r := bd.f.NewRegister(types.S1)
	bd.BuildICmpTo(r, pred, a, b)
	return r
}

// BuildSelect returns a new register holding a if test is set, b otherwise.
func (bd *Builder) BuildSelect(test, a, b *Register) *Register {
	return bd.Build(types.Select, []types.LLT{a.typ}, test, a, b).defs[0]
}

// BuildMerge defines dst as the concatenation of pieces, least significant first.
func (bd *Builder) BuildMerge(dst *Register, pieces []*Register) *Instr {
	return bd.BuildInstr(types.MergeValues, []*Register{dst}, pieces...)
}

// BuildMergeNew returns a new register of type t holding the concatenation of pieces, least significant first.
func (bd *Builder) BuildMergeNew(t types.LLT, pieces []*Register) *Register {
	r := bd.f.NewRegister(t)
	bd.BuildMerge(r, pieces)
	return r
}

// BuildUnmerge splits src into pieces of type t, least significant first.
func (bd *Builder) BuildUnmerge(t types.LLT, src *Register) []*Register {
	n := src.typ.SizeInBits() / t.SizeInBits()
	defTypes := make([]types.LLT, n)
	for i1 := range defTypes {
		defTypes[i1] = t
	}
	return append([]*Register(nil), bd.Build(types.UnmergeValues, defTypes, src).defs...)
}

// BuildPtrAdd returns a new pointer register holding base advanced by off bytes.
func (bd *Builder) BuildPtrAdd(base, off *Register) *Register {
	return bd.Build(types.PtrAdd, []types.LLT{types.P}, base, off).defs[0]
}

// BuildLoad returns a new register of type t loaded from ptr.
func (bd *Builder) BuildLoad(t types.LLT, ptr *Register) *Register {
	return bd.Build(types.Load, []types.LLT{t}, ptr).defs[0]
}

// BuildStore stores v at ptr.
func (bd *Builder) BuildStore(v, ptr *Register) *Instr {
	return bd.BuildInstr(types.Store, nil, v, ptr)
}

// BuildFrameIndex returns a new pointer register holding the address of frame slot.
func (bd *Builder) BuildFrameIndex(slot int) *Register {
	r := bd.f.NewRegister(types.P)
	bd.BuildWith(types.FrameIndex, []*Register{r}, nil, Operands{Imm: int64(slot), Part: ArgWhole})
	return r
}

// BuildGlobal returns a new pointer register holding the address of sym plus off.
func (bd *Builder) BuildGlobal(sym string, off int64) *Register {
	r := bd.f.NewRegister(types.P)
	bd.BuildWith(types.GlobalValue, []*Register{r}, nil, Operands{Sym: sym, Imm: off, Part: ArgWhole})
	return r
}

// BuildArg returns a new register of type t holding byte part of parameter idx, or all of it if part is ArgWhole.
func (bd *Builder) BuildArg(t types.LLT, idx, part int) *Register {
	r := bd.f.NewRegister(t)
	bd.BuildWith(types.Arg, []*Register{r}, nil, Operands{Imm: int64(idx), Part: part})
	return r
}

// BuildPhi defines dst as the value of vals[i] when control arrives from preds[i].
func (bd *Builder) BuildPhi(dst *Register, vals []*Register, preds []*Block) *Instr {
	if len(vals) != len(preds) {
		panic(fmt.Sprintf("function %s: G_PHI with %d values and %d blocks", bd.f.name, len(vals), len(preds)))
	}
	return bd.BuildWith(types.Phi, []*Register{dst}, vals, Operands{Targets: preds, Part: ArgWhole})
}

// BuildBr creates an unconditional branch to dst.
func (bd *Builder) BuildBr(dst *Block) *Instr {
	return bd.BuildWith(types.Br, nil, nil, Operands{Targets: []*Block{dst}, Part: ArgWhole})
}

// BuildBrCond creates a branch to thn if cond is set, els otherwise.
func (bd *Builder) BuildBrCond(cond *Register, thn, els *Block) *Instr {
	return bd.BuildWith(types.BrCond, nil, []*Register{cond}, Operands{Targets: []*Block{thn, els}, Part: ArgWhole})
}

// BuildBrCondImm creates a branch to thn if cond equals polarity, els otherwise.
func (bd *Builder) BuildBrCondImm(cond *Register, polarity int64, thn, els *Block) *Instr {
	return bd.BuildWith(types.BrCondImm, nil, []*Register{cond},
		Operands{Imm: polarity, Targets: []*Block{thn, els}, Part: ArgWhole})
}

// BuildRet creates a return of vals.
func (bd *Builder) BuildRet(vals ...*Register) *Instr {
	return bd.BuildInstr(types.Ret, nil, vals...)
}

// BuildCall creates a call to sym with arguments args, writing results.
func (bd *Builder) BuildCall(sym string, results, args []*Register) *Instr {
	return bd.BuildWith(types.Call, results, args, Operands{Sym: sym, Part: ArgWhole})
}

// BuildSbc creates a G_SBC of a, b and carry in cin. Defs are result, carry, negative, overflow and zero.
func (bd *Builder) BuildSbc(a, b, cin *Register) *Instr {
	return bd.Build(types.Sbc, []types.LLT{types.S8, types.S1, types.S1, types.S1, types.S1}, a, b, cin)
}

// BuildShiftE creates a G_SHLE or G_LSHRE of v with carry in cin. Defs are result and carry out.
func (bd *Builder) BuildShiftE(op types.Opcode, v, cin *Register) *Instr {
	return bd.Build(op, []types.LLT{v.typ, types.S1}, v, cin)
}

// BuildIndex returns a new pointer register holding base advanced by the unsigned s8 off.
func (bd *Builder) BuildIndex(base, off *Register) *Register {
	return bd.Build(types.Index, []types.LLT{types.P}, base, off).defs[0]
}

// BuildReadSP returns a new pointer register holding the stack pointer.
func (bd *Builder) BuildReadSP() *Register {
	r := bd.f.NewRegister(types.P)
	bd.BuildWith(types.ReadSP, []*Register{r}, nil, Operands{Implicit: []string{PhysRS0}, Part: ArgWhole})
	return r
}

// BuildSetSP writes one half of the stack pointer. op is G_SET_SP_HI or G_SET_SP_LO. The other half is kept, so
// the write both defines and reads the stack pointer register.
func (bd *Builder) BuildSetSP(op types.Opcode, v *Register) *Instr {
	return bd.BuildWith(op, nil, []*Register{v}, Operands{
		Implicit:     []string{PhysRS0},
		ImplicitDefs: []string{PhysRS0},
		Part:         ArgWhole,
	})
}

// normalise returns the sign extended value of v truncated to the width of t.
func normalise(v int64, t types.LLT) int64 {
	if t.IsPointer() {
		return int64(uint64(v) & 0xffff)
	}
	return types.SignExtend(uint64(v)&t.Mask(), t.SizeInBits())
}
