// Package types defines gMIR low-level types, opcodes and comparison predicates.
package types

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind separates scalar types from pointer types.
type Kind uint8

// LLT is a low-level type: a scalar of some bit width or a pointer into the 16-bit address space.
type LLT struct {
	kind Kind   // kind is either ScalarKind or PointerKind.
	bits uint16 // bits holds the width of the type in bits.
}

// Opcode identifies a gMIR operation.
type Opcode uint16

// Predicate defines an integer comparison predicate of G_ICMP.
type Predicate uint8

// ---------------------
// ----- Constants -----
// ---------------------

const (
	InvalidKind Kind = iota // InvalidKind is the zero LLT.
	ScalarKind              // ScalarKind identifies an integer or bit vector of some width.
	PointerKind             // PointerKind identifies a 16-bit address.
)

// PointerBits is the width of every pointer on the target.
const PointerBits = 16

// Generic opcodes produced by the upstream front end.
const (
	Invalid Opcode = iota

	// Values.
	Constant
	ImplicitDef
	FrameIndex
	GlobalValue
	Arg
	Copy

	// Extension, truncation and conversion.
	AnyExt
	ZExt
	SExt
	Trunc
	IntToPtr
	PtrToInt
	MergeValues
	UnmergeValues
	BSwap

	// Integer arithmetic and logic.
	Add
	Sub
	And
	Or
	Xor
	Mul
	SDiv
	SRem
	UDiv
	URem
	SDivRem
	UDivRem
	Shl
	LShr
	AShr
	RotL
	RotR
	ICmp
	Select
	PtrAdd
	SMin
	SMax
	UMin
	UMax
	Abs
	UAddO
	SAddO
	USubO
	SSubO
	UAddE
	SAddE
	USubE
	SSubE

	// Bit field, saturating and extended arithmetic. None of these survive legalization.
	SExtInReg
	Extract
	Insert
	BitReverse
	Freeze
	UAddSat
	SAddSat
	USubSat
	SSubSat
	UShlSat
	SShlSat
	UMulO
	SMulO
	UMulH
	SMulH
	FShl
	FShr
	CtLZ
	CtTZ
	CtPop

	// Memory.
	Load
	Store
	MemCpy
	MemMove
	MemSet
	SExtLoad
	ZExtLoad

	// Control flow.
	Phi
	Br
	BrCond
	Ret
	Call

	// Variadic arguments and stack.
	VAStart
	VAArg
	VACopy
	DynStackAlloc

	// Floating point. The target has no representation for any of these.
	FConstant
	FAdd
	FSub
	FMul
	FDiv
	FRem
	FNeg
	FPExt
	FPTrunc
	FPToSI
	FPToUI
	SIToFP
	UIToFP
	FCmp

	// Target opcodes introduced by legalization.
	Sbc
	ShlE
	LShrE
	Index
	BrCondImm
	SetSPHi
	SetSPLo
	ReadSP

	opcodeCount
)

// Integer comparison predicates.
const (
	PredEQ Predicate = iota
	PredNE
	PredUGT
	PredUGE
	PredULT
	PredULE
	PredSGT
	PredSGE
	PredSLT
	PredSLE
)

// -------------------
// ----- Globals -----
// -------------------

var (
	S1  = Scalar(1)            // S1 is the boolean type.
	S8  = Scalar(8)            // S8 is the native register width.
	S16 = Scalar(16)           // S16 is the integer bridge for pointers.
	S32 = Scalar(32)           // S32 is a 32-bit integer.
	S64 = Scalar(64)           // S64 is a 64-bit integer.
	P   = Pointer(PointerBits) // P is the only address space pointer.
)

// oTyp provides the textual names of the opcodes. The order must follow the Opcode constants.
var oTyp = [opcodeCount]string{
	"G_INVALID",
	"G_CONSTANT",
	"G_IMPLICIT_DEF",
	"G_FRAME_INDEX",
	"G_GLOBAL_VALUE",
	"G_ARG",
	"COPY",
	"G_ANYEXT",
	"G_ZEXT",
	"G_SEXT",
	"G_TRUNC",
	"G_INTTOPTR",
	"G_PTRTOINT",
	"G_MERGE_VALUES",
	"G_UNMERGE_VALUES",
	"G_BSWAP",
	"G_ADD",
	"G_SUB",
	"G_AND",
	"G_OR",
	"G_XOR",
	"G_MUL",
	"G_SDIV",
	"G_SREM",
	"G_UDIV",
	"G_UREM",
	"G_SDIVREM",
	"G_UDIVREM",
	"G_SHL",
	"G_LSHR",
	"G_ASHR",
	"G_ROTL",
	"G_ROTR",
	"G_ICMP",
	"G_SELECT",
	"G_PTR_ADD",
	"G_SMIN",
	"G_SMAX",
	"G_UMIN",
	"G_UMAX",
	"G_ABS",
	"G_UADDO",
	"G_SADDO",
	"G_USUBO",
	"G_SSUBO",
	"G_UADDE",
	"G_SADDE",
	"G_USUBE",
	"G_SSUBE",
	"G_SEXT_INREG",
	"G_EXTRACT",
	"G_INSERT",
	"G_BITREVERSE",
	"G_FREEZE",
	"G_UADDSAT",
	"G_SADDSAT",
	"G_USUBSAT",
	"G_SSUBSAT",
	"G_USHLSAT",
	"G_SSHLSAT",
	"G_UMULO",
	"G_SMULO",
	"G_UMULH",
	"G_SMULH",
	"G_FSHL",
	"G_FSHR",
	"G_CTLZ",
	"G_CTTZ",
	"G_CTPOP",
	"G_LOAD",
	"G_STORE",
	"G_MEMCPY",
	"G_MEMMOVE",
	"G_MEMSET",
	"G_SEXTLOAD",
	"G_ZEXTLOAD",
	"G_PHI",
	"G_BR",
	"G_BRCOND",
	"G_RET",
	"G_CALL",
	"G_VASTART",
	"G_VAARG",
	"G_VACOPY",
	"G_DYN_STACKALLOC",
	"G_FCONSTANT",
	"G_FADD",
	"G_FSUB",
	"G_FMUL",
	"G_FDIV",
	"G_FREM",
	"G_FNEG",
	"G_FPEXT",
	"G_FPTRUNC",
	"G_FPTOSI",
	"G_FPTOUI",
	"G_SITOFP",
	"G_UITOFP",
	"G_FCMP",
	"G_SBC",
	"G_SHLE",
	"G_LSHRE",
	"G_INDEX",
	"G_BRCOND_IMM",
	"G_SET_SP_HI",
	"G_SET_SP_LO",
	"G_READ_SP",
}

// pTyp provides the textual names of the comparison predicates.
var pTyp = [...]string{
	"eq",
	"ne",
	"ugt",
	"uge",
	"ult",
	"ule",
	"sgt",
	"sge",
	"slt",
	"sle",
}

// opcodes maps opcode names back to opcodes for the text front end.
var opcodes = func() map[string]Opcode {
	m := make(map[string]Opcode, opcodeCount)
	for i1, e1 := range oTyp {
		m[e1] = Opcode(i1)
	}
	return m
}()

// ---------------------
// ----- Functions -----
// ---------------------

// Scalar returns the scalar LLT of the given bit width.
func Scalar(bits int) LLT {
	if bits < 1 || bits > 0xffff {
		panic(fmt.Sprintf("invalid scalar width %d", bits))
	}
	return LLT{kind: ScalarKind, bits: uint16(bits)}
}

// Pointer returns the pointer LLT of the given bit width.
func Pointer(bits int) LLT {
	return LLT{kind: PointerKind, bits: uint16(bits)}
}

// IsValid returns false for the zero LLT.
func (t LLT) IsValid() bool {
	return t.kind != InvalidKind
}

// IsScalar returns true if t is a scalar.
func (t LLT) IsScalar() bool {
	return t.kind == ScalarKind
}

// IsPointer returns true if t is a pointer.
func (t LLT) IsPointer() bool {
	return t.kind == PointerKind
}

// SizeInBits returns the width of t.
func (t LLT) SizeInBits() int {
	return int(t.bits)
}

// SizeInBytes returns the number of bytes needed to store t.
func (t LLT) SizeInBytes() int {
	return (int(t.bits) + 7) / 8
}

// IsByteSized returns true if the width of t is a whole number of bytes.
func (t LLT) IsByteSized() bool {
	return t.bits%8 == 0
}

// Mask returns the mask of all bits that belong to t.
func (t LLT) Mask() uint64 {
	if t.bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << t.bits) - 1
}

// String returns the textual gMIR representation of t, for instance s16 or p.
func (t LLT) String() string {
	switch t.kind {
	case ScalarKind:
		return fmt.Sprintf("s%d", t.bits)
	case PointerKind:
		return "p"
	default:
		return "<invalid>"
	}
}

// ParseLLT parses the textual representation produced by LLT.String.
func ParseLLT(s string) (LLT, error) {
	if s == "p" || s == "p0" {
		return P, nil
	}
	var bits int
	if _, err := fmt.Sscanf(s, "s%d", &bits); err != nil || bits < 1 || bits > 0xffff {
		return LLT{}, fmt.Errorf("invalid type %q", s)
	}
	return Scalar(bits), nil
}

// String returns the textual gMIR name of opcode op.
func (op Opcode) String() string {
	if op >= opcodeCount {
		return fmt.Sprintf("G_OPCODE_%d", uint16(op))
	}
	return oTyp[op]
}

// IsFloat returns true for operations on floating point values.
func (op Opcode) IsFloat() bool {
	return op >= FConstant && op <= FCmp
}

// IsTerminator returns true for the control transfer operations that end a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case Br, BrCond, BrCondImm, Ret:
		return true
	}
	return false
}

// HasSideEffects returns true for operations that must keep their position relative to each other.
func (op Opcode) HasSideEffects() bool {
	switch op {
	case Load, SExtLoad, ZExtLoad, Store, MemCpy, MemMove, MemSet, Call, VAStart, VAArg, VACopy, DynStackAlloc,
		SetSPHi, SetSPLo, ReadSP, Br, BrCond, BrCondImm, Ret:
		return true
	}
	return false
}

// LookupOpcode returns the opcode with the textual name s.
func LookupOpcode(s string) (Opcode, bool) {
	op, ok := opcodes[s]
	return op, ok && op != Invalid
}

// String returns the textual name of predicate p.
func (p Predicate) String() string {
	if int(p) >= len(pTyp) {
		return fmt.Sprintf("pred%d", uint8(p))
	}
	return pTyp[p]
}

// LookupPredicate returns the predicate with the textual name s.
func LookupPredicate(s string) (Predicate, bool) {
	for i1, e1 := range pTyp {
		if e1 == s {
			return Predicate(i1), true
		}
	}
	return 0, false
}

// Inverse returns the predicate that is true exactly when p is false.
func (p Predicate) Inverse() Predicate {
	switch p {
	case PredEQ:
		return PredNE
	case PredNE:
		return PredEQ
	case PredUGT:
		return PredULE
	case PredUGE:
		return PredULT
	case PredULT:
		return PredUGE
	case PredULE:
		return PredUGT
	case PredSGT:
		return PredSLE
	case PredSGE:
		return PredSLT
	case PredSLT:
		return PredSGE
	default:
		return PredSGT
	}
}

// Swapped returns the predicate that gives the same result as p with the operands exchanged.
func (p Predicate) Swapped() Predicate {
	switch p {
	case PredUGT:
		return PredULT
	case PredUGE:
		return PredULE
	case PredULT:
		return PredUGT
	case PredULE:
		return PredUGE
	case PredSGT:
		return PredSLT
	case PredSGE:
		return PredSLE
	case PredSLT:
		return PredSGT
	case PredSLE:
		return PredSGE
	default:
		return p
	}
}

// IsSigned returns true for the signed orderings.
func (p Predicate) IsSigned() bool {
	return p >= PredSGT && p <= PredSLE
}

// Unsigned returns the unsigned ordering that corresponds to the signed ordering p.
func (p Predicate) Unsigned() Predicate {
	if !p.IsSigned() {
		return p
	}
	return p - PredSGT + PredUGT
}

// Eval evaluates predicate p on two values of the given width.
func (p Predicate) Eval(a, b uint64, bits int) bool {
	sa, sb := SignExtend(a, bits), SignExtend(b, bits)
	switch p {
	case PredEQ:
		return a == b
	case PredNE:
		return a != b
	case PredUGT:
		return a > b
	case PredUGE:
		return a >= b
	case PredULT:
		return a < b
	case PredULE:
		return a <= b
	case PredSGT:
		return sa > sb
	case PredSGE:
		return sa >= sb
	case PredSLT:
		return sa < sb
	default:
		return sa <= sb
	}
}

// SignExtend interprets the low bits of v as a two's complement number.
func SignExtend(v uint64, bits int) int64 {
	if bits >= 64 {
		return int64(v)
	}
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift
}
