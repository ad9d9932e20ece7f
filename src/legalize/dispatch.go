package legalize

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// routine is a custom transformation. It builds the replacement of inst at the builder and returns true if inst
// must be erased. Returning false without building anything defers inst to a later pass.
type routine func(l *Legalizer, inst *gmir.Instr) (bool, error)

// routines maps every opcode with a Custom rule to its transformation.
var routines map[types.Opcode]routine

func init() {
	routines = map[types.Opcode]routine{
		types.ZExt:          lowerZExt,
		types.SExt:          lowerSExt,
		types.IntToPtr:      lowerIntToPtr,
		types.PtrToInt:      lowerPtrToInt,
		types.MergeValues:   lowerMerge,
		types.UnmergeValues: lowerUnmerge,
		types.BSwap:         lowerBSwap,
		types.Xor:           lowerXor,
		types.Shl:           lowerShift,
		types.LShr:          lowerShift,
		types.AShr:          lowerShift,
		types.RotL:          lowerRotate,
		types.RotR:          lowerRotate,
		types.ICmp:          lowerICmp,
		types.Select:        lowerSelect,
		types.PtrAdd:        lowerPtrAdd,
		types.UAddO:         lowerOverflow,
		types.SAddO:         lowerOverflow,
		types.USubO:         lowerOverflow,
		types.SSubO:         lowerOverflow,
		types.USubE:         lowerSubE,
		types.SSubE:         lowerSubE,
		types.Load:          lowerLoad,
		types.Store:         lowerStore,
		types.Phi:           lowerPhi,
		types.BrCond:        lowerBrCond,
		types.Ret:           lowerRet,
		types.Call:          lowerCall,
		types.VAStart:       lowerVAStart,
		types.VAArg:         lowerVAArg,
		types.VACopy:        lowerVACopy,
		types.DynStackAlloc: lowerDynStackAlloc,
	}
}
