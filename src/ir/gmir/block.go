package gmir

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Block is a basic block. PHIs come first and the block ends in exactly one terminator.
type Block struct {
	f      *Function // Parent function.
	id     int       // Unique identifier of basic block, printed as bb.<id>.
	instrs []*Instr  // Instructions in program order.
}

// ---------------------
// ----- Constants -----
// ---------------------

// labelBlockPrefix defines the textual gMIR representation of a basic block label.
const labelBlockPrefix = "bb."

// -------------------
// ----- Globals -----
// -------------------

// ---------------------
// ----- Functions -----
// ---------------------

// Id returns the uniquely assigned identifier of Block b.
func (b *Block) Id() int {
	return b.id
}

// Name returns the textual gMIR label of Block b.
func (b *Block) Name() string {
	return fmt.Sprintf("%s%d", labelBlockPrefix, b.id)
}

// Function returns the parent function of Block b.
func (b *Block) Function() *Function {
	return b.f
}

// Instrs returns a copy of the instruction list of Block b, safe to iterate while b is modified.
func (b *Block) Instrs() []*Instr {
	return slices.Clone(b.instrs)
}

// Len returns the number of instructions in Block b.
func (b *Block) Len() int {
	return len(b.instrs)
}

// Terminator returns the last instruction of Block b if it's a terminator, nil otherwise.
func (b *Block) Terminator() *Instr {
	if len(b.instrs) == 0 {
		return nil
	}
	if last := b.instrs[len(b.instrs)-1]; last.op.IsTerminator() {
		return last
	}
	return nil
}

// Successors returns the blocks control may transfer to from Block b.
func (b *Block) Successors() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	res := make([]*Block, 0, len(term.targets))
	for _, e1 := range term.targets {
		if !slices.Contains(res, e1) {
			res = append(res, e1)
		}
	}
	return res
}

// Predecessors returns the blocks whose terminator may transfer control to Block b.
func (b *Block) Predecessors() []*Block {
	res := make([]*Block, 0, 2)
	for _, e1 := range b.f.blocks {
		if slices.Contains(e1.Successors(), b) {
			res = append(res, e1)
		}
	}
	return res
}

// Phis returns the G_PHI instructions at the head of Block b.
func (b *Block) Phis() []*Instr {
	return slices.Clone(b.instrs[:b.firstNonPhi()])
}

// FirstNonPhi returns the first instruction after the PHIs of Block b, or nil if there is none.
func (b *Block) FirstNonPhi() *Instr {
	if i := b.firstNonPhi(); i < len(b.instrs) {
		return b.instrs[i]
	}
	return nil
}

// String returns the textual gMIR representation of all instructions in Block b.
func (b *Block) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s:\n", b.Name()))
	for _, e1 := range b.instrs {
		sb.WriteString("  ")
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	return sb.String()
}

// MoveToEnd moves Block b behind all other blocks of its function.
func (b *Block) MoveToEnd() {
	blocks := b.f.blocks
	i := slices.Index(blocks, b)
	b.f.blocks = append(slices.Delete(blocks, i, i+1), b)
}

// firstNonPhi returns the index of the first instruction after the PHIs.
func (b *Block) firstNonPhi() int {
	for i1, e1 := range b.instrs {
		if e1.op != types.Phi {
			return i1
		}
	}
	return len(b.instrs)
}

// index returns the position of inst in Block b.
func (b *Block) index(inst *Instr) int {
	i := slices.Index(b.instrs, inst)
	if i < 0 {
		panic(fmt.Sprintf("instruction %d (%s) is not in block %s", inst.id, inst.op, b.Name()))
	}
	return i
}

// insert places inst before Instr before, or at the end of Block b if before is nil.
func (b *Block) insert(inst *Instr, before *Instr) {
	inst.b = b
	if before == nil {
		b.instrs = append(b.instrs, inst)
		return
	}
	b.instrs = slices.Insert(b.instrs, b.index(before), inst)
}

// remove takes inst out of Block b.
func (b *Block) remove(inst *Instr) {
	i := b.index(inst)
	b.instrs = slices.Delete(b.instrs, i, i+1)
}
