package mos

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// signature accepts or rejects the operand types of an instruction.
type signature func(defs, uses []types.LLT) bool

// IllegalError lists the instructions of a function that the selector cannot accept.
type IllegalError struct {
	Function string        // Function name.
	Instrs   []*gmir.Instr // Offending instructions.
}

// ---------------------
// ----- Constants -----
// ---------------------

// -------------------
// ----- Globals -----
// -------------------

var (
	s1, s8, p = types.S1, types.S8, types.P
)

// vocabulary maps every opcode the selector accepts to its accepted type signatures.
var vocabulary = map[types.Opcode]signature{
	types.Constant:      one(s1, s8, p),
	types.ImplicitDef:   one(s1, s8, p),
	types.FrameIndex:    one(p),
	types.GlobalValue:   one(p),
	types.Arg:           one(s1, s8, p),
	types.Copy:          same(s1, s8, p),
	types.AnyExt:        exact([]types.LLT{s8}, []types.LLT{s1}),
	types.Trunc:         exact([]types.LLT{s1}, []types.LLT{s8}),
	types.MergeValues:   exact([]types.LLT{p}, []types.LLT{s8, s8}),
	types.UnmergeValues: exact([]types.LLT{s8, s8}, []types.LLT{p}),
	types.Add:           same(s8),
	types.Sub:           same(s8),
	types.And:           same(s8),
	types.Or:            same(s8),
	types.Xor:           same(s8),
	types.Select:        selectSig,
	types.UAddE:         exact([]types.LLT{s8, s1}, []types.LLT{s8, s8, s1}),
	types.SAddE:         exact([]types.LLT{s8, s1}, []types.LLT{s8, s8, s1}),
	types.Sbc:           exact([]types.LLT{s8, s1, s1, s1, s1}, []types.LLT{s8, s8, s1}),
	types.ShlE:          exact([]types.LLT{s8, s1}, []types.LLT{s8, s1}),
	types.LShrE:         exact([]types.LLT{s8, s1}, []types.LLT{s8, s1}),
	types.Index:         exact([]types.LLT{p}, []types.LLT{p, s8}),
	types.Load:          exact([]types.LLT{s8}, []types.LLT{p}),
	types.Store:         exact(nil, []types.LLT{s8, p}),
	types.Phi:           same(s1, s8),
	types.Br:            exact(nil, nil),
	types.BrCondImm:     exact(nil, []types.LLT{s1}),
	types.Ret:           each(s1, s8, p),
	types.Call:          each(s1, s8, p),
	types.SetSPHi:       exact(nil, []types.LLT{s8}),
	types.SetSPLo:       exact(nil, []types.LLT{s8}),
	types.ReadSP:        exact([]types.LLT{p}, nil),
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error implements the error interface.
func (e *IllegalError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("function @%s: %d instruction(s) outside the selector vocabulary:", e.Function,
		len(e.Instrs)))
	for _, e1 := range e.Instrs {
		sb.WriteString("\n\t")
		sb.WriteString(e1.String())
	}
	return sb.String()
}

// Accepts returns true if the selector accepts Instr inst.
func Accepts(inst *gmir.Instr) bool {
	sig, ok := vocabulary[inst.Opcode()]
	if !ok {
		return false
	}
	for _, e1 := range append(append([]string(nil), inst.Implicit()...), inst.ImplicitDefs()...) {
		if _, ok := PhysRegister(e1); !ok {
			return false
		}
	}
	if op := inst.Opcode(); op == types.SetSPHi || op == types.SetSPLo {
		// Each half keeps the other, so RS0 is both read and written.
		if !slices.Contains(inst.Implicit(), gmir.PhysRS0) || !slices.Contains(inst.ImplicitDefs(), gmir.PhysRS0) {
			return false
		}
	}
	defs := make([]types.LLT, len(inst.Defs()))
	for i1, e1 := range inst.Defs() {
		defs[i1] = e1.Type()
	}
	uses := make([]types.LLT, len(inst.Uses()))
	for i1, e1 := range inst.Uses() {
		uses[i1] = e1.Type()
	}
	return sig(defs, uses)
}

// Illegal returns the instructions of Function f the selector does not accept. Stack pointer halves written out of
// order, or apart from each other, are illegal as well.
func Illegal(f *gmir.Function) []*gmir.Instr {
	misplaced := make(map[*gmir.Instr]bool)
	for _, e1 := range f.Blocks() {
		for _, e2 := range gmir.MisplacedStackWrites(e1) {
			misplaced[e2] = true
		}
	}
	var res []*gmir.Instr
	for _, e1 := range f.Instrs() {
		if !Accepts(e1) || misplaced[e1] {
			res = append(res, e1)
		}
	}
	return res
}

// Check returns an *IllegalError if Function f contains instructions the selector does not accept.
func Check(f *gmir.Function) error {
	if bad := Illegal(f); len(bad) > 0 {
		return &IllegalError{Function: f.Name(), Instrs: bad}
	}
	return nil
}

// one accepts a single def of one of the given types and no uses.
func one(ts ...types.LLT) signature {
	return func(defs, uses []types.LLT) bool {
		return len(defs) == 1 && len(uses) == 0 && in(defs[0], ts)
	}
}

// same accepts operands that all share one of the given types.
func same(ts ...types.LLT) signature {
	return func(defs, uses []types.LLT) bool {
		if len(defs) != 1 || !in(defs[0], ts) {
			return false
		}
		for _, e1 := range uses {
			if e1 != defs[0] {
				return false
			}
		}
		return true
	}
}

// each accepts any number of operands, each of one of the given types.
func each(ts ...types.LLT) signature {
	return func(defs, uses []types.LLT) bool {
		for _, e1 := range append(append([]types.LLT(nil), defs...), uses...) {
			if !in(e1, ts) {
				return false
			}
		}
		return true
	}
}

// exact accepts exactly the given def and use types.
func exact(wantDefs, wantUses []types.LLT) signature {
	return func(defs, uses []types.LLT) bool {
		return equal(defs, wantDefs) && equal(uses, wantUses)
	}
}

// selectSig accepts s1 and s8 selects with an s1 test.
func selectSig(defs, uses []types.LLT) bool {
	return len(defs) == 1 && len(uses) == 3 && in(defs[0], []types.LLT{s1, s8}) && uses[0] == s1 &&
		uses[1] == defs[0] && uses[2] == defs[0]
}

// in returns true if t is one of ts.
func in(t types.LLT, ts []types.LLT) bool {
	for _, e1 := range ts {
		if e1 == t {
			return true
		}
	}
	return false
}

// equal returns true if a and b hold the same types in the same order.
func equal(a, b []types.LLT) bool {
	if len(a) != len(b) {
		return false
	}
	for i1 := range a {
		if a[i1] != b[i1] {
			return false
		}
	}
	return true
}
