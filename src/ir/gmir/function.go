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

// Function is a gMIR function with declared parameter and result types.
type Function struct {
	m       *Module           // Parent module.
	name    string            // Symbol name of function.
	params  []types.LLT       // Declared parameter types, read by G_ARG.
	results []types.LLT       // Declared result types, written by G_RET.
	frame   FrameInfo         // Fixed stack objects.
	blocks  []*Block          // Basic blocks, the first one is the entry block.
	regs    map[int]*Register // All virtual registers by identifier.
	regSeq  int               // Next register identifier.
	instSeq int               // Next instruction identifier.
	blkSeq  int               // Next block identifier.
}

// FrameInfo describes the fixed stack objects of a function.
type FrameInfo struct {
	Slots       []int // Size in bytes of every frame slot, indexed by frame index.
	VarArgsSlot int   // Frame index of the variadic argument save area, or -1.
}

// ---------------------
// ----- Constants -----
// ---------------------

// NoSlot marks the absence of a frame slot.
const NoSlot = -1

// -------------------
// ----- Globals -----
// -------------------

// ---------------------
// ----- Functions -----
// ---------------------

// Name returns the symbol name of Function f.
func (f *Function) Name() string {
	return f.name
}

// Module returns the parent module of Function f.
func (f *Function) Module() *Module {
	return f.m
}

// Params returns the declared parameter types of Function f.
func (f *Function) Params() []types.LLT {
	return f.params
}

// Results returns the declared result types of Function f.
func (f *Function) Results() []types.LLT {
	return f.results
}

// Frame returns the fixed stack objects of Function f.
func (f *Function) Frame() *FrameInfo {
	return &f.frame
}

// IsVariadic returns true if Function f has a variadic argument save area.
func (f *Function) IsVariadic() bool {
	return f.frame.VarArgsSlot != NoSlot
}

// CreateStackSlot adds a fixed stack object of size bytes to Function f and returns its frame index.
func (f *Function) CreateStackSlot(size int) int {
	f.frame.Slots = append(f.frame.Slots, size)
	return len(f.frame.Slots) - 1
}

// Blocks returns the basic blocks of Function f.
func (f *Function) Blocks() []*Block {
	return f.blocks
}

// Entry returns the entry block of Function f.
func (f *Function) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// CreateBlock appends a new empty block to Function f.
func (f *Function) CreateBlock() *Block {
	return f.CreateBlockWithId(f.blkSeq)
}

// CreateBlockWithId appends a new empty block with the given identifier to Function f.
func (f *Function) CreateBlockWithId(id int) *Block {
	if f.Block(id) != nil {
		panic(fmt.Sprintf("function %s: block %s%d already exists", f.name, labelBlockPrefix, id))
	}
	b := &Block{
		f:      f,
		id:     id,
		instrs: make([]*Instr, 0, 16),
	}
	if id >= f.blkSeq {
		f.blkSeq = id + 1
	}
	f.blocks = append(f.blocks, b)
	return b
}

// Block returns the block with identifier id, or nil.
func (f *Function) Block(id int) *Block {
	for _, e1 := range f.blocks {
		if e1.id == id {
			return e1
		}
	}
	return nil
}

// NewRegister creates a detached virtual register of type typ.
func (f *Function) NewRegister(typ types.LLT) *Register {
	return f.RegisterWithId(f.regSeq, typ)
}

// RegisterWithId returns the register with identifier id, creating it with type typ if it does not exist. A register
// created with an invalid type takes the type of its first definition.
func (f *Function) RegisterWithId(id int, typ types.LLT) *Register {
	if r, ok := f.regs[id]; ok {
		if !r.typ.IsValid() {
			r.typ = typ
		}
		return r
	}
	r := &Register{
		f:   f,
		id:  id,
		typ: typ,
	}
	f.regs[id] = r
	if id >= f.regSeq {
		f.regSeq = id + 1
	}
	return r
}

// Register returns the register with identifier id, or nil.
func (f *Function) Register(id int) *Register {
	return f.regs[id]
}

// Instrs returns all instructions of Function f in block order.
func (f *Function) Instrs() []*Instr {
	res := make([]*Instr, 0, 64)
	for _, e1 := range f.blocks {
		res = append(res, e1.instrs...)
	}
	return res
}

// Len returns the number of instructions in Function f.
func (f *Function) Len() int {
	n := 0
	for _, e1 := range f.blocks {
		n += len(e1.instrs)
	}
	return n
}

// ReplaceAllUses rewrites every read of Register old to read Register r.
func (f *Function) ReplaceAllUses(old, r *Register) {
	if old == r {
		return
	}
	for _, e1 := range slices.Clone(old.users) {
		e1.ReplaceUse(old, r)
	}
}

// String returns the textual gMIR representation of Function f.
func (f *Function) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("func @%s(", f.name))
	for i1, e1 := range f.params {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.String())
	}
	sb.WriteRune(')')
	switch len(f.results) {
	case 0:
	case 1:
		sb.WriteString(fmt.Sprintf(" -> %s", f.results[0]))
	default:
		sb.WriteString(" -> (")
		for i1, e1 := range f.results {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e1.String())
		}
		sb.WriteRune(')')
	}
	sb.WriteString(" {\n")
	for i1, e1 := range f.frame.Slots {
		sb.WriteString(fmt.Sprintf("  %s%d size %d", labelStackPrefix, i1, e1))
		if i1 == f.frame.VarArgsSlot {
			sb.WriteString(" vararg")
		}
		sb.WriteRune('\n')
	}
	for _, e1 := range f.blocks {
		sb.WriteString(e1.String())
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Clone returns a deep copy of Function f registered in Module m under the same name.
func (f *Function) Clone(m *Module) *Function {
	res := m.newFunction(f.name, slices.Clone(f.params), slices.Clone(f.results))
	res.frame = FrameInfo{Slots: slices.Clone(f.frame.Slots), VarArgsSlot: f.frame.VarArgsSlot}
	for _, e1 := range f.blocks {
		res.CreateBlockWithId(e1.id)
	}
	reg := func(r *Register) *Register {
		return res.RegisterWithId(r.id, r.typ)
	}
	for _, e1 := range f.blocks {
		b := res.Block(e1.id)
		for _, e2 := range e1.instrs {
			inst := &Instr{
				id:       e2.id,
				op:       e2.op,
				pred:     e2.pred,
				imm:      e2.imm,
				part:     e2.part,
				sym:      e2.sym,
				implicit: slices.Clone(e2.implicit),
				impDefs:  slices.Clone(e2.impDefs),
			}
			for _, e3 := range e2.defs {
				r := reg(e3)
				r.def = inst
				inst.defs = append(inst.defs, r)
			}
			for _, e3 := range e2.uses {
				r := reg(e3)
				r.addUser(inst)
				inst.uses = append(inst.uses, r)
			}
			for _, e3 := range e2.targets {
				inst.targets = append(inst.targets, res.Block(e3.id))
			}
			b.insert(inst, nil)
		}
	}
	res.regSeq, res.instSeq, res.blkSeq = f.regSeq, f.instSeq, f.blkSeq
	return res
}

// nextInstrId returns a unique instruction identifier.
func (f *Function) nextInstrId() int {
	res := f.instSeq
	f.instSeq++
	return res
}
