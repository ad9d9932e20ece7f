// Package gmir provides the generic machine IR consumed and produced by the legalizer. Values live in typed virtual
// registers, every register has exactly one defining instruction and instructions are grouped in basic blocks.
package gmir

import (
	"fmt"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Register is a typed virtual register.
type Register struct {
	f     *Function // Parent function.
	id    int       // Unique identifier of register in function.
	typ   types.LLT // Low-level type of the value held by register.
	def   *Instr    // Defining instruction, nil while the register is detached.
	users []*Instr  // Instructions reading the register. An instruction reading it twice appears twice.
}

// ---------------------
// ----- Constants -----
// ---------------------

// PhysRS0 names the soft stack pointer register pair of the target.
const PhysRS0 = "rs0"

// labelRegisterPrefix is the textual prefix of virtual registers.
const labelRegisterPrefix = "%"

// -------------------
// ----- Globals -----
// -------------------

// ---------------------
// ----- Functions -----
// ---------------------

// Id returns the unique identifier of Register r.
func (r *Register) Id() int {
	return r.id
}

// Type returns the low-level type of Register r.
func (r *Register) Type() types.LLT {
	return r.typ
}

// Def returns the instruction that defines Register r.
func (r *Register) Def() *Instr {
	return r.def
}

// Users returns the instructions that read Register r. The slice must not be modified.
func (r *Register) Users() []*Instr {
	return r.users
}

// HasUsers returns true if any instruction reads Register r.
func (r *Register) HasUsers() bool {
	return len(r.users) > 0
}

// Function returns the function that owns Register r.
func (r *Register) Function() *Function {
	return r.f
}

// String returns the textual gMIR name of Register r.
func (r *Register) String() string {
	return fmt.Sprintf("%s%d", labelRegisterPrefix, r.id)
}

// addUser records that inst reads r.
func (r *Register) addUser(inst *Instr) {
	r.users = append(r.users, inst)
}

// removeUser removes one occurrence of inst from the users of r.
func (r *Register) removeUser(inst *Instr) {
	for i1, e1 := range r.users {
		if e1 == inst {
			r.users = append(r.users[:i1], r.users[i1+1:]...)
			return
		}
	}
}

// ConstantValue returns the value of r if it's defined by G_CONSTANT.
func (r *Register) ConstantValue() (int64, bool) {
	if r.def == nil || r.def.op != types.Constant {
		return 0, false
	}
	return r.def.imm, true
}

// DefOpcode returns the opcode of the instruction defining r, or types.Invalid for detached registers.
func (r *Register) DefOpcode() types.Opcode {
	if r.def == nil {
		return types.Invalid
	}
	return r.def.op
}
