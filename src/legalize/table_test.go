package legalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"moslegal/src/ir/gmir/types"
)

// lltEqual compares low-level types, whose fields are unexported.
var lltEqual = cmp.Comparer(func(a, b types.LLT) bool {
	return a == b
})

func TestDefaultTable(t *testing.T) {
	s1, s8, s16, s24, s32, s64, p := types.S1, types.S8, types.S16, types.Scalar(24), types.S32, types.S64, types.P
	legal := Step{Action: Legal}
	custom := Step{Action: Custom}
	widen := func(idx int, t types.LLT) Step {
		return Step{Action: WidenScalar, TypeIdx: idx, Type: t}
	}
	narrow := func(idx int, t types.LLT) Step {
		return Step{Action: NarrowScalar, TypeIdx: idx, Type: t}
	}

	tests := []struct {
		op   types.Opcode
		ts   []types.LLT
		want Step
	}{
		// Values.
		{types.Constant, []types.LLT{s1}, legal},
		{types.Constant, []types.LLT{p}, legal},
		{types.Constant, []types.LLT{s32}, narrow(0, s8)},
		{types.Arg, []types.LLT{s16}, narrow(0, s8)},
		{types.FrameIndex, []types.LLT{p}, legal},

		// Extension, truncation and conversion.
		{types.AnyExt, []types.LLT{s8, s1}, legal},
		{types.AnyExt, []types.LLT{s32, s8}, narrow(0, s8)},
		{types.ZExt, []types.LLT{s16, s1}, custom},
		{types.ZExt, []types.LLT{s16, s8}, narrow(0, s8)},
		{types.SExt, []types.LLT{s64, s8}, custom},
		{types.Trunc, []types.LLT{s1, s8}, legal},
		{types.Trunc, []types.LLT{s8, s16}, narrow(1, s8)},
		{types.IntToPtr, []types.LLT{p, s16}, custom},
		{types.MergeValues, []types.LLT{p, s8}, legal},
		{types.MergeValues, []types.LLT{s16, s8}, custom},
		{types.UnmergeValues, []types.LLT{s8, p}, legal},
		{types.UnmergeValues, []types.LLT{s8, s32}, custom},

		// Integer arithmetic and logic.
		{types.Add, []types.LLT{s8}, legal},
		{types.Add, []types.LLT{s1}, widen(0, s8)},
		{types.Add, []types.LLT{s16}, narrow(0, s8)},
		{types.Add, []types.LLT{s24}, widen(0, s32)},
		{types.Xor, []types.LLT{s1}, custom},
		{types.Xor, []types.LLT{s64}, narrow(0, s8)},
		{types.Mul, []types.LLT{s16}, Step{Action: Libcall}},
		{types.Mul, []types.LLT{s1}, widen(0, s8)},
		{types.UDiv, []types.LLT{s24}, widen(0, s32)},
		{types.SDivRem, []types.LLT{s16}, Step{Action: Lower}},
		{types.Abs, []types.LLT{s8}, Step{Action: Lower}},
		{types.Shl, []types.LLT{s16, s8}, custom},
		{types.Shl, []types.LLT{s16, s16}, narrow(1, s8)},
		{types.Shl, []types.LLT{s16, s1}, widen(1, s8)},
		{types.AShr, []types.LLT{s24, s8}, widen(0, s32)},
		{types.RotL, []types.LLT{s8, s8}, custom},
		{types.ICmp, []types.LLT{s1, s1}, widen(1, s8)},
		{types.ICmp, []types.LLT{s1, s32}, custom},
		{types.Select, []types.LLT{s8, s1}, legal},
		{types.Select, []types.LLT{p, s1}, custom},
		{types.Select, []types.LLT{s32, s1}, narrow(0, s8)},
		{types.PtrAdd, []types.LLT{p, s8}, widen(1, s16)},
		{types.PtrAdd, []types.LLT{p, s32}, narrow(1, s16)},
		{types.PtrAdd, []types.LLT{p, s16}, custom},
		{types.UAddO, []types.LLT{s8, s1}, custom},
		{types.UAddE, []types.LLT{s8, s1}, legal},
		{types.UAddE, []types.LLT{s16, s1}, narrow(0, s8)},
		{types.USubE, []types.LLT{s8, s1}, custom},
		{types.SSubE, []types.LLT{s32, s1}, narrow(0, s8)},
		{types.SExtInReg, []types.LLT{s16}, Step{Action: Lower}},
		{types.CtPop, []types.LLT{s8, s32}, Step{Action: Lower}},
		{types.FShl, []types.LLT{s24}, Step{Action: Lower}},
		{types.SMulO, []types.LLT{s16, s1}, Step{Action: Lower}},

		// Memory.
		{types.Load, []types.LLT{s8, p}, legal},
		{types.Load, []types.LLT{s1, p}, widen(0, s8)},
		{types.Load, []types.LLT{p, p}, custom},
		{types.Store, []types.LLT{s32, p}, narrow(0, s8)},
		{types.MemSet, []types.LLT{p, s8, s16}, Step{Action: Libcall}},
		{types.ZExtLoad, []types.LLT{s32, p}, Step{Action: Lower}},

		// Control flow.
		{types.Phi, []types.LLT{s1}, legal},
		{types.Phi, []types.LLT{p}, custom},
		{types.Phi, []types.LLT{s16}, narrow(0, s8)},
		{types.Br, nil, legal},
		{types.BrCond, []types.LLT{s1}, custom},
		{types.Ret, []types.LLT{s8, p, s1}, legal},
		{types.Ret, []types.LLT{s8, s16}, custom},
		{types.Call, nil, legal},

		// Variadic arguments and stack.
		{types.VAArg, []types.LLT{s16, p}, custom},
		{types.DynStackAlloc, []types.LLT{p, s8}, widen(1, s16)},
		{types.DynStackAlloc, []types.LLT{p, s16}, custom},

		// Target opcodes.
		{types.Sbc, []types.LLT{s8}, legal},
		{types.Index, []types.LLT{p}, legal},
		{types.SetSPHi, []types.LLT{s8}, legal},

		// Rejections.
		{types.FAdd, []types.LLT{s32}, Step{Action: Unsupported}},
		{types.FCmp, []types.LLT{s1, s32}, Step{Action: Unsupported}},
		{types.Invalid, nil, Step{Action: NotFound}},
	}
	tbl := DefaultTable()
	for _, e1 := range tests {
		got := tbl.Action(Query{Op: e1.op, Types: e1.ts})
		if diff := cmp.Diff(e1.want, got, lltEqual); diff != "" {
			t.Errorf("%s %s mismatch (-want +got):\n%s", e1.op, typeList(e1.ts), diff)
		}
	}
}

// TestTableCoverage checks that every generic opcode has a rule set and that every custom opcode has a routine.
func TestTableCoverage(t *testing.T) {
	tbl := DefaultTable()
	for op := types.Constant; op < types.Sbc; op++ {
		if !tbl.Covers(op) {
			t.Errorf("%s has no rule set", op)
		}
	}
	for op, rs := range tbl.sets {
		for _, e1 := range rs.rules {
			if e1.action != Custom {
				continue
			}
			if _, ok := routines[op]; !ok {
				t.Errorf("%s has a custom rule but no routine", op)
			}
		}
	}
}

func TestRuleOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Rules(types.Add, types.Sub).
		LegalFor(types.S16).
		WidenToPow2(0, 8).
		Custom()
	tbl.Rules(types.Sub).
		Unsupported()

	tests := []struct {
		q    Query
		want Step
	}{
		{Query{Op: types.Add, Types: []types.LLT{types.S16}}, Step{Action: Legal}},
		{Query{Op: types.Add, Types: []types.LLT{types.Scalar(12)}},
			Step{Action: WidenScalar, TypeIdx: 0, Type: types.S16}},
		{Query{Op: types.Add, Types: []types.LLT{types.S1}},
			Step{Action: WidenScalar, TypeIdx: 0, Type: types.S8}},
		{Query{Op: types.Add, Types: []types.LLT{types.S32}}, Step{Action: Custom}},
		{Query{Op: types.Sub, Types: []types.LLT{types.S16}}, Step{Action: Unsupported}},
		{Query{Op: types.Mul, Types: []types.LLT{types.S16}}, Step{Action: NotFound}},
	}
	for _, e1 := range tests {
		if diff := cmp.Diff(e1.want, tbl.Action(e1.q), lltEqual); diff != "" {
			t.Errorf("%s %s mismatch (-want +got):\n%s", e1.q.Op, typeList(e1.q.Types), diff)
		}
	}
}

func TestStepString(t *testing.T) {
	tests := []struct {
		s    Step
		want string
	}{
		{Step{Action: Legal}, "Legal"},
		{Step{Action: WidenScalar, TypeIdx: 1, Type: types.S8}, "WidenScalar(1, s8)"},
		{Step{Action: NarrowScalar, Type: types.S8}, "NarrowScalar(0, s8)"},
		{Step{Action: Libcall}, "Libcall"},
		{Step{Action: Action(42)}, "action42"},
	}
	for _, e1 := range tests {
		if got := e1.s.String(); got != e1.want {
			t.Errorf("got %q, want %q", got, e1.want)
		}
	}
}
