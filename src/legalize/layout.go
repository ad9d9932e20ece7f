package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// slots lists the def and use positions of an instruction that share one type index.
type slots struct {
	defs []int // Positions in the def list.
	uses []int // Positions in the use list.
}

// ---------------------
// ----- Functions -----
// ---------------------

// layout returns the operand positions of every type index of Instr inst. Type index 0 is the value type of the
// instruction; the other indices hold the secondary types (shift amounts, offsets, flags, sources of conversions).
func layout(inst *gmir.Instr) []slots {
	nd, nu := len(inst.Defs()), len(inst.Uses())
	switch inst.Opcode() {
	case types.ICmp:
		return []slots{{defs: []int{0}}, {uses: []int{0, 1}}}
	case types.Select:
		return []slots{{defs: []int{0}, uses: []int{1, 2}}, {uses: []int{0}}}
	case types.Shl, types.LShr, types.AShr, types.RotL, types.RotR, types.PtrAdd, types.UShlSat, types.SShlSat:
		return []slots{{defs: []int{0}, uses: []int{0}}, {uses: []int{1}}}
	case types.AnyExt, types.ZExt, types.SExt, types.Trunc, types.IntToPtr, types.PtrToInt, types.Load,
		types.VAArg, types.DynStackAlloc, types.Extract, types.CtLZ, types.CtTZ, types.CtPop, types.SExtLoad,
		types.ZExtLoad:
		return []slots{{defs: []int{0}}, {uses: []int{0}}}
	case types.MergeValues:
		return []slots{{defs: []int{0}}, {uses: seq(nu)}}
	case types.UnmergeValues:
		return []slots{{defs: seq(nd)}, {uses: []int{0}}}
	case types.Insert:
		return []slots{{defs: []int{0}, uses: []int{0}}, {uses: []int{1}}}
	case types.UAddO, types.SAddO, types.USubO, types.SSubO, types.UMulO, types.SMulO:
		return []slots{{defs: []int{0}, uses: []int{0, 1}}, {defs: []int{1}}}
	case types.UAddE, types.SAddE, types.USubE, types.SSubE:
		return []slots{{defs: []int{0}, uses: []int{0, 1}}, {defs: []int{1}, uses: []int{2}}}
	case types.Store, types.VACopy, types.MemCpy, types.MemMove, types.MemSet:
		res := make([]slots, nu)
		for i1 := range res {
			res[i1] = slots{uses: []int{i1}}
		}
		return res
	case types.Ret, types.Call:
		res := make([]slots, 0, nd+nu)
		for i1 := 0; i1 < nd; i1++ {
			res = append(res, slots{defs: []int{i1}})
		}
		for i1 := 0; i1 < nu; i1++ {
			res = append(res, slots{uses: []int{i1}})
		}
		return res
	case types.Br:
		return nil
	}
	return []slots{{defs: seq(nd), uses: seq(nu)}}
}

// queryOf returns the rule table Query of Instr inst.
func queryOf(inst *gmir.Instr) Query {
	l := layout(inst)
	q := Query{Op: inst.Opcode(), Types: make([]types.LLT, len(l))}
	for i1, e1 := range l {
		switch {
		case len(e1.defs) > 0:
			q.Types[i1] = inst.Def(e1.defs[0]).Type()
		case len(e1.uses) > 0:
			q.Types[i1] = inst.Use(e1.uses[0]).Type()
		}
	}
	return q
}

// seq returns the positions 0 to n-1.
func seq(n int) []int {
	res := make([]int, n)
	for i1 := range res {
		res[i1] = i1
	}
	return res
}
