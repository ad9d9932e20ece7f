package legalize

import (
	"fmt"
	"sync"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Action is what the legalizer does with an instruction.
type Action int

// Query is the shape of an instruction as seen by the rule table: its opcode and the type of every type index.
type Query struct {
	Op    types.Opcode // Opcode of the instruction.
	Types []types.LLT  // Type of each type index, see queryOf.
}

// Step is the answer of the rule table to a Query.
type Step struct {
	Action  Action    // What to do.
	TypeIdx int       // Type index to change, for WidenScalar and NarrowScalar.
	Type    types.LLT // New type of TypeIdx, for WidenScalar and NarrowScalar.
}

// predicate decides whether a rule applies to a Query.
type predicate func(q Query) bool

// mutation computes the type index and new type of a widening or narrowing rule.
type mutation func(q Query) (int, types.LLT)

// rule is a single entry of a RuleSet.
type rule struct {
	pred   predicate // Applicability.
	action Action    // Action if pred holds.
	mutate mutation  // New type, for WidenScalar and NarrowScalar.
}

// RuleSet holds the ordered rules shared by a group of opcodes. The first rule whose predicate holds wins.
type RuleSet struct {
	ops   []types.Opcode // Opcodes covered by the set.
	rules []rule         // Rules in priority order.
}

// Table maps opcodes to their rule sets. A Table is immutable once built and may be read concurrently.
type Table struct {
	sets map[types.Opcode]*RuleSet // Rule set of each opcode.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Legal        Action = iota // Legal instructions are left alone.
	WidenScalar                // WidenScalar widens one type index.
	NarrowScalar               // NarrowScalar splits one type index into narrower pieces.
	Libcall                    // Libcall replaces the instruction with a call to a runtime helper.
	Custom                     // Custom hands the instruction to its transformation routine.
	Lower                      // Lower expands the instruction into simpler generic operations.
	Unsupported                // Unsupported instructions abort legalization.
	NotFound                   // NotFound means no rule matched.
)

// -------------------
// ----- Globals -----
// -------------------

// aTyp provides the names of the actions.
var aTyp = [...]string{
	"Legal",
	"WidenScalar",
	"NarrowScalar",
	"Libcall",
	"Custom",
	"Lower",
	"Unsupported",
	"NotFound",
}

var (
	defaultTable *Table
	tableOnce    sync.Once
)

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the name of action a.
func (a Action) String() string {
	if a < 0 || int(a) >= len(aTyp) {
		return fmt.Sprintf("action%d", int(a))
	}
	return aTyp[a]
}

// String returns the step as it appears in the debug log.
func (s Step) String() string {
	switch s.Action {
	case WidenScalar, NarrowScalar:
		return fmt.Sprintf("%s(%d, %s)", s.Action, s.TypeIdx, s.Type)
	default:
		return s.Action.String()
	}
}

// DefaultTable returns the rule table of the 6502 family. It's built on first use.
func DefaultTable() *Table {
	tableOnce.Do(func() {
		defaultTable = buildTable()
	})
	return defaultTable
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{sets: make(map[types.Opcode]*RuleSet, 64)}
}

// Rules returns a new RuleSet shared by the opcodes ops. Opcodes previously assigned to another set are moved.
func (t *Table) Rules(ops ...types.Opcode) *RuleSet {
	rs := &RuleSet{ops: ops}
	for _, e1 := range ops {
		t.sets[e1] = rs
	}
	return rs
}

// Action returns the first matching Step of the rule set of q.Op.
func (t *Table) Action(q Query) Step {
	rs, ok := t.sets[q.Op]
	if !ok {
		return Step{Action: NotFound}
	}
	for _, e1 := range rs.rules {
		if !e1.pred(q) {
			continue
		}
		s := Step{Action: e1.action}
		if e1.mutate != nil {
			s.TypeIdx, s.Type = e1.mutate(q)
		}
		return s
	}
	return Step{Action: NotFound}
}

// Covers returns true if op has a rule set.
func (t *Table) Covers(op types.Opcode) bool {
	_, ok := t.sets[op]
	return ok
}

// add appends a rule to the set.
func (rs *RuleSet) add(p predicate, a Action, m mutation) *RuleSet {
	rs.rules = append(rs.rules, rule{pred: p, action: a, mutate: m})
	return rs
}

// Legal marks every remaining shape legal.
func (rs *RuleSet) Legal() *RuleSet {
	return rs.add(always, Legal, nil)
}

// LegalFor marks the shapes whose type index 0 is one of ts legal.
func (rs *RuleSet) LegalFor(ts ...types.LLT) *RuleSet {
	return rs.add(typeInSet(0, ts...), Legal, nil)
}

// LegalForPairs marks the shapes whose type indices 0 and 1 form one of pairs legal.
func (rs *RuleSet) LegalForPairs(pairs ...[2]types.LLT) *RuleSet {
	return rs.add(typePairInSet(pairs...), Legal, nil)
}

// LegalIf marks the shapes satisfying p legal.
func (rs *RuleSet) LegalIf(p predicate) *RuleSet {
	return rs.add(p, Legal, nil)
}

// Custom hands every remaining shape to the transformation routine of the opcode.
func (rs *RuleSet) Custom() *RuleSet {
	return rs.add(always, Custom, nil)
}

// CustomFor hands the shapes whose type index 0 is one of ts to the transformation routine.
func (rs *RuleSet) CustomFor(ts ...types.LLT) *RuleSet {
	return rs.add(typeInSet(0, ts...), Custom, nil)
}

// CustomForPairs hands the shapes whose type indices 0 and 1 form one of pairs to the transformation routine.
func (rs *RuleSet) CustomForPairs(pairs ...[2]types.LLT) *RuleSet {
	return rs.add(typePairInSet(pairs...), Custom, nil)
}

// CustomIf hands the shapes satisfying p to the transformation routine.
func (rs *RuleSet) CustomIf(p predicate) *RuleSet {
	return rs.add(p, Custom, nil)
}

// Libcall replaces every remaining shape with a runtime helper call.
func (rs *RuleSet) Libcall() *RuleSet {
	return rs.add(always, Libcall, nil)
}

// Lower expands every remaining shape into simpler operations.
func (rs *RuleSet) Lower() *RuleSet {
	return rs.add(always, Lower, nil)
}

// Unsupported rejects every remaining shape.
func (rs *RuleSet) Unsupported() *RuleSet {
	return rs.add(always, Unsupported, nil)
}

// WidenScalarFor widens type index idx from type from to type to.
func (rs *RuleSet) WidenScalarFor(idx int, from, to types.LLT) *RuleSet {
	return rs.add(typeIs(idx, from), WidenScalar, changeTo(idx, to))
}

// WidenToPow2 widens a scalar type index idx to the next power of two, but at least minBits.
func (rs *RuleSet) WidenToPow2(idx, minBits int) *RuleSet {
	p := func(q Query) bool {
		t, ok := typeAt(q, idx)
		if !ok || !t.IsScalar() {
			return false
		}
		n := t.SizeInBits()
		return n < minBits || n&(n-1) != 0
	}
	m := func(q Query) (int, types.LLT) {
		n := nextPow2(q.Types[idx].SizeInBits())
		if n < minBits {
			n = minBits
		}
		return idx, types.Scalar(n)
	}
	return rs.add(p, WidenScalar, m)
}

// ClampScalar widens a scalar type index idx narrower than lo to lo and narrows one wider than hi to hi.
func (rs *RuleSet) ClampScalar(idx int, lo, hi types.LLT) *RuleSet {
	rs.add(scalarNarrowerThan(idx, lo.SizeInBits()), WidenScalar, changeTo(idx, lo))
	return rs.add(scalarWiderThan(idx, hi.SizeInBits()), NarrowScalar, changeTo(idx, hi))
}

// NarrowScalarAbove narrows a scalar type index idx wider than t to t.
func (rs *RuleSet) NarrowScalarAbove(idx int, t types.LLT) *RuleSet {
	return rs.add(scalarWiderThan(idx, t.SizeInBits()), NarrowScalar, changeTo(idx, t))
}

// always holds for every Query.
func always(Query) bool {
	return true
}

// typeAt returns type index idx of q.
func typeAt(q Query, idx int) (types.LLT, bool) {
	if idx < 0 || idx >= len(q.Types) {
		return types.LLT{}, false
	}
	return q.Types[idx], true
}

// typeIs holds if type index idx is t.
func typeIs(idx int, t types.LLT) predicate {
	return func(q Query) bool {
		u, ok := typeAt(q, idx)
		return ok && u == t
	}
}

// typeInSet holds if type index idx is one of ts.
func typeInSet(idx int, ts ...types.LLT) predicate {
	return func(q Query) bool {
		u, ok := typeAt(q, idx)
		if !ok {
			return false
		}
		for _, e1 := range ts {
			if e1 == u {
				return true
			}
		}
		return false
	}
}

// typePairInSet holds if type indices 0 and 1 form one of pairs.
func typePairInSet(pairs ...[2]types.LLT) predicate {
	return func(q Query) bool {
		if len(q.Types) < 2 {
			return false
		}
		for _, e1 := range pairs {
			if q.Types[0] == e1[0] && q.Types[1] == e1[1] {
				return true
			}
		}
		return false
	}
}

// allTypesIn holds if every type index of q is one of ts.
func allTypesIn(ts ...types.LLT) predicate {
	return func(q Query) bool {
		for i1 := range q.Types {
			if !typeInSet(i1, ts...)(q) {
				return false
			}
		}
		return true
	}
}

// scalarNarrowerThan holds if type index idx is a scalar of fewer than n bits.
func scalarNarrowerThan(idx, n int) predicate {
	return func(q Query) bool {
		t, ok := typeAt(q, idx)
		return ok && t.IsScalar() && t.SizeInBits() < n
	}
}

// scalarWiderThan holds if type index idx is a scalar of more than n bits.
func scalarWiderThan(idx, n int) predicate {
	return func(q Query) bool {
		t, ok := typeAt(q, idx)
		return ok && t.IsScalar() && t.SizeInBits() > n
	}
}

// changeTo sets type index idx to t.
func changeTo(idx int, t types.LLT) mutation {
	return func(Query) (int, types.LLT) {
		return idx, t
	}
}

// nextPow2 returns the smallest power of two not below n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// buildTable creates the rule table of the 6502 family.
func buildTable() *Table {
	s1, s8, s16, p := types.S1, types.S8, types.S16, types.P
	t := NewTable()

	// Values.
	t.Rules(types.Constant, types.ImplicitDef, types.Arg, types.Copy).
		LegalFor(s1, s8, p).
		NarrowScalarAbove(0, s8)
	t.Rules(types.FrameIndex, types.GlobalValue).
		LegalFor(p)

	// Extension, truncation and conversion.
	t.Rules(types.AnyExt).
		LegalForPairs([2]types.LLT{s8, s1}).
		NarrowScalarAbove(0, s8)
	t.Rules(types.ZExt).
		CustomIf(typeIs(1, s1)).
		NarrowScalarAbove(0, s8)
	t.Rules(types.SExt).
		Custom()
	t.Rules(types.Trunc).
		LegalForPairs([2]types.LLT{s1, s8}).
		NarrowScalarAbove(1, s8)
	t.Rules(types.IntToPtr, types.PtrToInt).
		Custom()
	t.Rules(types.MergeValues).
		LegalForPairs([2]types.LLT{p, s8}).
		Custom()
	t.Rules(types.UnmergeValues).
		LegalForPairs([2]types.LLT{s8, p}).
		Custom()
	t.Rules(types.BSwap).
		Custom()

	// Integer arithmetic and logic.
	t.Rules(types.Add, types.Sub, types.And, types.Or).
		LegalFor(s8).
		WidenToPow2(0, 8).
		ClampScalar(0, s8, s8)
	t.Rules(types.Xor).
		LegalFor(s8).
		CustomFor(s1).
		WidenToPow2(0, 8).
		ClampScalar(0, s8, s8)
	t.Rules(types.Mul, types.SDiv, types.SRem, types.UDiv, types.URem).
		WidenToPow2(0, 8).
		Libcall()
	t.Rules(types.SDivRem, types.UDivRem, types.SMin, types.SMax, types.UMin, types.UMax, types.Abs).
		Lower()
	t.Rules(types.Shl, types.LShr, types.AShr).
		WidenToPow2(0, 8).
		ClampScalar(1, s8, s8).
		Custom()
	t.Rules(types.RotL, types.RotR).
		Custom()
	t.Rules(types.ICmp).
		WidenScalarFor(1, s1, s8).
		Custom()
	t.Rules(types.Select).
		LegalFor(s1, s8).
		CustomFor(p).
		NarrowScalarAbove(0, s8)
	t.Rules(types.PtrAdd).
		ClampScalar(1, s16, s16).
		Custom()
	t.Rules(types.UAddO, types.SAddO, types.USubO, types.SSubO).
		Custom()
	t.Rules(types.UAddE, types.SAddE).
		LegalForPairs([2]types.LLT{s8, s1}).
		NarrowScalarAbove(0, s8)
	t.Rules(types.USubE, types.SSubE).
		CustomForPairs([2]types.LLT{s8, s1}).
		NarrowScalarAbove(0, s8)

	// Bit fields, counts, saturation and extended multiplication expand into the operations above.
	t.Rules(types.SExtInReg, types.Extract, types.Insert, types.BitReverse, types.Freeze, types.UAddSat,
		types.SAddSat, types.USubSat, types.SSubSat, types.UShlSat, types.SShlSat, types.UMulO, types.SMulO,
		types.UMulH, types.SMulH, types.FShl, types.FShr, types.CtLZ, types.CtTZ, types.CtPop).
		Lower()

	// Memory.
	t.Rules(types.Load, types.Store).
		LegalForPairs([2]types.LLT{s8, p}).
		WidenScalarFor(0, s1, s8).
		CustomFor(p).
		NarrowScalarAbove(0, s8)
	t.Rules(types.SExtLoad, types.ZExtLoad).
		Lower()
	t.Rules(types.MemCpy, types.MemMove, types.MemSet).
		Libcall()

	// Control flow.
	t.Rules(types.Phi).
		LegalFor(s1, s8).
		CustomFor(p).
		NarrowScalarAbove(0, s8)
	t.Rules(types.Br).
		Legal()
	t.Rules(types.BrCond).
		Custom()
	t.Rules(types.Ret, types.Call).
		LegalIf(allTypesIn(s1, s8, p)).
		Custom()

	// Variadic arguments and stack.
	t.Rules(types.VAStart, types.VAArg, types.VACopy).
		Custom()
	t.Rules(types.DynStackAlloc).
		ClampScalar(1, s16, s16).
		Custom()

	// Target opcodes are produced legal.
	t.Rules(types.Sbc, types.ShlE, types.LShrE, types.Index, types.BrCondImm, types.SetSPHi, types.SetSPLo,
		types.ReadSP).
		Legal()

	// No floating point on the target.
	t.Rules(types.FConstant, types.FAdd, types.FSub, types.FMul, types.FDiv, types.FRem, types.FNeg, types.FPExt,
		types.FPTrunc, types.FPToSI, types.FPToUI, types.SIToFP, types.UIToFP, types.FCmp).
		Unsupported()

	return t
}
