package gmir

import (
	"fmt"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Instr is a single gMIR operation. Operand layout depends on the opcode:
//
//	G_CONSTANT        def; imm
//	G_FRAME_INDEX     def; imm is the frame slot
//	G_GLOBAL_VALUE    def; sym, imm is the byte offset
//	G_ARG             def; imm is the parameter index, part the byte of the parameter or -1 for all of it
//	G_ICMP            def; pred, lhs, rhs
//	G_SELECT          def; test, true value, false value
//	G_PHI             def; one use per entry of targets, the incoming blocks
//	G_BR              targets[0]
//	G_BRCOND          cond; targets are the taken and fall-through blocks
//	G_BRCOND_IMM      cond; imm is the polarity that takes targets[0]
//	G_CALL            results; sym, arguments
//	G_DYN_STACKALLOC  def; size, imm is the alignment
//	G_SBC             res, carry, negative, overflow, zero; lhs, rhs, carry in
//	G_SHLE, G_LSHRE   res, carry out; value, carry in
//
// The remaining opcodes use plain def and use lists.
type Instr struct {
	b        *Block          // Parent basic block.
	id       int             // Unique identifier of instruction in function.
	op       types.Opcode    // Operation.
	defs     []*Register     // Registers written by the instruction.
	uses     []*Register     // Registers read by the instruction.
	pred     types.Predicate // Comparison predicate of G_ICMP.
	imm      int64           // Immediate operand.
	part     int             // Byte part of G_ARG, -1 for the whole parameter.
	sym      string          // Symbol of G_GLOBAL_VALUE and G_CALL.
	targets  []*Block        // Branch targets and incoming blocks of G_PHI.
	implicit []string        // Implicitly read physical registers.
	impDefs  []string        // Implicitly written physical registers.
	erased   bool            // Set when the instruction has been removed from its block.
}

// ---------------------
// ----- Constants -----
// ---------------------

// ArgWhole is the part of a G_ARG that reads the whole parameter.
const ArgWhole = -1

// -------------------
// ----- Globals -----
// -------------------

// ---------------------
// ----- Functions -----
// ---------------------

// Id returns the unique identifier of Instr inst.
func (inst *Instr) Id() int {
	return inst.id
}

// Opcode returns the operation of Instr inst.
func (inst *Instr) Opcode() types.Opcode {
	return inst.op
}

// Block returns the basic block that holds Instr inst.
func (inst *Instr) Block() *Block {
	return inst.b
}

// Defs returns the registers written by Instr inst. The slice must not be modified.
func (inst *Instr) Defs() []*Register {
	return inst.defs
}

// Def returns the i'th register written by Instr inst.
func (inst *Instr) Def(i int) *Register {
	if i < 0 || i >= len(inst.defs) {
		panic(fmt.Sprintf("%s has no def %d", inst.op, i))
	}
	return inst.defs[i]
}

// Uses returns the registers read by Instr inst. The slice must not be modified.
func (inst *Instr) Uses() []*Register {
	return inst.uses
}

// Use returns the i'th register read by Instr inst.
func (inst *Instr) Use(i int) *Register {
	if i < 0 || i >= len(inst.uses) {
		panic(fmt.Sprintf("%s has no use %d", inst.op, i))
	}
	return inst.uses[i]
}

// Pred returns the comparison predicate of Instr inst.
func (inst *Instr) Pred() types.Predicate {
	return inst.pred
}

// Imm returns the immediate operand of Instr inst.
func (inst *Instr) Imm() int64 {
	return inst.imm
}

// Part returns the byte part of a G_ARG.
func (inst *Instr) Part() int {
	return inst.part
}

// Sym returns the symbol operand of Instr inst.
func (inst *Instr) Sym() string {
	return inst.sym
}

// Targets returns the branch targets of Instr inst, or the incoming blocks of a G_PHI.
func (inst *Instr) Targets() []*Block {
	return inst.targets
}

// Implicit returns the physical registers Instr inst implicitly reads.
func (inst *Instr) Implicit() []string {
	return inst.implicit
}

// ImplicitDefs returns the physical registers Instr inst implicitly writes.
func (inst *Instr) ImplicitDefs() []string {
	return inst.impDefs
}

// Operands returns a copy of the non-register operands of Instr inst.
func (inst *Instr) Operands() Operands {
	return Operands{
		Pred:         inst.pred,
		Imm:          inst.imm,
		Part:         inst.part,
		Sym:          inst.sym,
		Targets:      append([]*Block(nil), inst.targets...),
		Implicit:     append([]string(nil), inst.implicit...),
		ImplicitDefs: append([]string(nil), inst.impDefs...),
	}
}

// IsErased returns true once Instr inst has been removed from its block.
func (inst *Instr) IsErased() bool {
	return inst.erased
}

// IsPure returns true if Instr inst may be removed once none of its results are read.
func (inst *Instr) IsPure() bool {
	return !inst.op.HasSideEffects() && !inst.op.IsTerminator() && len(inst.implicit) == 0 &&
		len(inst.impDefs) == 0
}

// IsDead returns true if Instr inst is pure and none of its results are read.
func (inst *Instr) IsDead() bool {
	if !inst.IsPure() || len(inst.defs) == 0 {
		return false
	}
	for _, e1 := range inst.defs {
		if e1.HasUsers() {
			return false
		}
	}
	return true
}

// SetUse replaces the i'th register read by Instr inst.
func (inst *Instr) SetUse(i int, r *Register) {
	if i < 0 || i >= len(inst.uses) {
		panic(fmt.Sprintf("%s has no use %d", inst.op, i))
	}
	inst.uses[i].removeUser(inst)
	inst.uses[i] = r
	r.addUser(inst)
}

// SetImm sets the immediate operand of Instr inst.
func (inst *Instr) SetImm(imm int64) {
	inst.imm = imm
}

// SetPred sets the comparison predicate of Instr inst.
func (inst *Instr) SetPred(p types.Predicate) {
	inst.pred = p
}

// ReplaceUse replaces every read of old by Instr inst with a read of r.
func (inst *Instr) ReplaceUse(old, r *Register) {
	for i1, e1 := range inst.uses {
		if e1 == old {
			inst.SetUse(i1, r)
		}
	}
}

// Erase removes Instr inst from its basic block. Registers defined by inst are detached.
func (inst *Instr) Erase() {
	if inst.erased {
		return
	}
	inst.b.remove(inst)
	for _, e1 := range inst.uses {
		e1.removeUser(inst)
	}
	for _, e1 := range inst.defs {
		if e1.def == inst {
			e1.def = nil
		}
	}
	inst.erased = true
}

// IncomingFor returns the value a G_PHI receives when control arrives from Block pred.
func (inst *Instr) IncomingFor(pred *Block) *Register {
	for i1, e1 := range inst.targets {
		if e1 == pred {
			return inst.uses[i1]
		}
	}
	return nil
}
