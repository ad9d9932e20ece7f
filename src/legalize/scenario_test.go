package legalize

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"moslegal/src/backend/sim"
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
	"moslegal/src/util"
)

// -------------------
// ----- Globals -----
// -------------------

// propSrc holds the functions checked against closed form results.
const propSrc = `
func @slt16(s16, s16) -> (s1, s1, s1, s1) {
bb.0:
  %0:s16 = G_ARG 0
  %1:s16 = G_ARG 1
  %2:s1 = G_ICMP slt %0, %1
  %3:s1 = G_ICMP ult %0, %1
  %4:s1 = G_ICMP eq %0, %1
  %5:s1 = G_ICMP sge %0, %1
  G_RET %2, %3, %4, %5
}

func @uaddo(s8, s8) -> (s8, s1) {
bb.0:
  %0:s8 = G_ARG 0
  %1:s8 = G_ARG 1
  %2:s8, %3:s1 = G_UADDO %0, %1
  G_RET %2, %3
}

func @subE(s8, s8, s1) -> (s8, s1, s8, s1) {
bb.0:
  %0:s8 = G_ARG 0
  %1:s8 = G_ARG 1
  %2:s1 = G_ARG 2
  %3:s8, %4:s1 = G_USUBE %0, %1, %2
  %5:s8, %6:s1 = G_SSUBE %0, %1, %2
  G_RET %3, %4, %5, %6
}

func @sext8(s8) -> s16 {
bb.0:
  %0:s8 = G_ARG 0
  %1:s16 = G_SEXT %0
  G_RET %1
}

func @rot1(s8) -> (s8, s8, s8, s8) {
bb.0:
  %0:s8 = G_ARG 0
  %1:s8 = G_CONSTANT 1
  %2:s8 = G_CONSTANT 7
  %3:s8 = G_ROTR %0, %1
  %4:s8 = G_ROTL %0, %2
  %5:s8 = G_ROTL %0, %1
  %6:s8 = G_ROTR %0, %2
  G_RET %3, %4, %5, %6
}

func @va() -> (s8, s16, s16, s8) {
  %stack.0 size 2
  %stack.1 size 8 vararg
  %stack.2 size 2
bb.0:
  %0:p = G_FRAME_INDEX %stack.0
  G_VASTART %0
  %1:s8 = G_VAARG %0
  %5:p = G_FRAME_INDEX %stack.2
  G_VACOPY %5, %0
  %2:s16 = G_VAARG %0
  %3:p = G_LOAD %0
  %4:s16 = G_PTRTOINT %3
  %6:s8 = G_VAARG %5
  G_RET %1, %2, %4, %6
}

func @alloca() -> s16 {
bb.0:
  %0:s16 = G_CONSTANT 10
  %1:p = G_DYN_STACKALLOC %0, 1
  %2:s16 = G_PTRTOINT %1
  G_RET %2
}

func @alloca4(s8) -> s16 {
bb.0:
  %0:s8 = G_ARG 0
  %1:p = G_DYN_STACKALLOC %0, 4
  %2:s16 = G_PTRTOINT %1
  G_RET %2
}
`

// ---------------------
// ----- Functions -----
// ---------------------

// instrsOf returns the instructions of Function f with opcode op.
func instrsOf(f *gmir.Function, op types.Opcode) []*gmir.Instr {
	var res []*gmir.Instr
	for _, e1 := range f.Instrs() {
		if e1.Opcode() == op {
			res = append(res, e1)
		}
	}
	return res
}

// TestSignedCompare checks 16-bit comparisons on the byte boundaries where a borrow or the sign changes.
func TestSignedCompare(t *testing.T) {
	m := legalized(t, parse(t, propSrc))
	tests := []struct {
		a, b uint64
		want []uint64 // slt, ult, eq, sge
	}{
		{0xffff, 0x0001, []uint64{1, 0, 0, 0}},
		{0x0001, 0xffff, []uint64{0, 1, 0, 1}},
		{0xffff, 0xffff, []uint64{0, 0, 1, 1}},
		{0x0000, 0x0000, []uint64{0, 0, 1, 1}},
		{0x0000, 0x0001, []uint64{1, 1, 0, 0}},
		{0x00ff, 0x0100, []uint64{1, 1, 0, 0}},
		{0x0100, 0x00ff, []uint64{0, 0, 0, 1}},
		{0x7fff, 0x8000, []uint64{0, 1, 0, 1}},
		{0x8000, 0x7fff, []uint64{1, 0, 0, 0}},
		{0x80ff, 0x8100, []uint64{1, 1, 0, 0}},
	}
	for _, e1 := range tests {
		got := run(t, m, "slt16", e1.a, e1.b)
		if diff := cmp.Diff(e1.want, got); diff != "" {
			t.Errorf("@slt16(0x%04x, 0x%04x) mismatch (-want +got):\n%s", e1.a, e1.b, diff)
		}
	}
}

// TestOverflowAdd checks the carry out of an 8-bit add.
func TestOverflowAdd(t *testing.T) {
	m := legalized(t, parse(t, propSrc))
	if diff := cmp.Diff([]uint64{4, 1}, run(t, m, "uaddo", 250, 10)); diff != "" {
		t.Errorf("@uaddo(250, 10) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint64{255, 0}, run(t, m, "uaddo", 250, 5)); diff != "" {
		t.Errorf("@uaddo(250, 5) mismatch (-want +got):\n%s", diff)
	}
}

// TestSubtractWithBorrow checks every input of the 8-bit subtracts with borrow in and out.
func TestSubtractWithBorrow(t *testing.T) {
	mc := sim.New(legalized(t, parse(t, propSrc)))
	for a := uint64(0); a < 256; a++ {
		for b := uint64(0); b < 256; b++ {
			for c := uint64(0); c < 2; c++ {
				diff := int64(a) - int64(b) - int64(c)
				res := uint64(diff) & 0xff
				borrow := uint64(0)
				if diff < 0 {
					borrow = 1
				}
				sdiff := int64(int8(a)) - int64(int8(b)) - int64(c)
				ovf := uint64(0)
				if sdiff < -128 || sdiff > 127 {
					ovf = 1
				}
				want := []uint64{res, borrow, res, ovf}
				got, err := mc.Run("subE", a, b, c)
				if err != nil {
					t.Fatal(err)
				}
				if d := cmp.Diff(want, got); d != "" {
					t.Fatalf("@subE(%d, %d, %d) mismatch (-want +got):\n%s", a, b, c, d)
				}
			}
		}
	}
}

// TestSignExtend checks the sign extension of every byte.
func TestSignExtend(t *testing.T) {
	m := legalized(t, parse(t, propSrc))
	for v := uint64(0); v < 256; v++ {
		want := []uint64{uint64(int64(int8(v))) & 0xffff}
		if diff := cmp.Diff(want, run(t, m, "sext8", v)); diff != "" {
			t.Fatalf("@sext8(0x%02x) mismatch (-want +got):\n%s", v, diff)
		}
	}
}

// TestRotateByte checks the single bit rotations of every byte, and that a rotation by 7 is a rotation by 1 the
// other way.
func TestRotateByte(t *testing.T) {
	m := legalized(t, parse(t, propSrc))
	f := m.Function("rot1")
	if n := len(instrsOf(f, types.RotL)) + len(instrsOf(f, types.RotR)); n != 0 {
		t.Errorf("%d rotation(s) left after legalization:\n%s", n, f)
	}
	if n := len(instrsOf(f, types.Call)); n != 0 {
		t.Errorf("single bit rotations call the runtime:\n%s", f)
	}
	for v := uint64(0); v < 256; v++ {
		r := (v>>1 | v<<7) & 0xff
		l := (v<<1 | v>>7) & 0xff
		want := []uint64{r, r, l, l}
		if diff := cmp.Diff(want, run(t, m, "rot1", v)); diff != "" {
			t.Fatalf("@rot1(0x%02x) mismatch (-want +got):\n%s", v, diff)
		}
	}
}

// TestVarArgs reads variadic arguments through a va_list cell and a copy of it.
func TestVarArgs(t *testing.T) {
	before := parse(t, propSrc)
	after := legalized(t, before)
	for _, e1 := range []*gmir.Module{before, after} {
		got, err := sim.New(e1).RunVariadic("va", nil, []byte{0x11, 0x22, 0x33})
		if err != nil {
			t.Fatal(err)
		}
		// The save area follows the 2-byte cell at the start of the frame.
		want := []uint64{0x11, 0x3322, sim.DefaultFrameBase + 2 + 3, 0x22}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("@va mismatch (-want +got):\n%s\n%s", diff, e1.Function("va"))
		}
	}
	f := after.Function("va")
	for _, e1 := range []types.Opcode{types.VAStart, types.VAArg, types.VACopy} {
		if n := len(instrsOf(f, e1)); n != 0 {
			t.Errorf("%d %s left after legalization", n, e1)
		}
	}
}

// TestDynStackAlloc checks that the stack pointer is written high byte first.
func TestDynStackAlloc(t *testing.T) {
	m := legalized(t, parse(t, propSrc))
	f := m.Function("alloca")

	mc := sim.New(m)
	got, err := mc.Run("alloca")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{0x1f36}, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if mc.SP != 0x1f36 {
		t.Errorf("stack pointer is 0x%04x, want 0x1f36", mc.SP)
	}
	wantWrites := []sim.SPWrite{{High: true, Value: 0x1f}, {High: false, Value: 0x36}}
	if diff := cmp.Diff(wantWrites, mc.SPWrites); diff != "" {
		t.Errorf("stack pointer writes mismatch (-want +got):\n%s", diff)
	}

	hi, lo := -1, -1
	for i1, e1 := range f.Instrs() {
		switch e1.Opcode() {
		case types.SetSPHi:
			hi = i1
		case types.SetSPLo:
			lo = i1
		default:
			continue
		}
		if diff := cmp.Diff([]string{gmir.PhysRS0}, e1.Implicit()); diff != "" {
			t.Errorf("%s: implicit uses mismatch (-want +got):\n%s", e1, diff)
		}
		if diff := cmp.Diff([]string{gmir.PhysRS0}, e1.ImplicitDefs()); diff != "" {
			t.Errorf("%s: implicit defs mismatch (-want +got):\n%s", e1, diff)
		}
	}
	if hi < 0 || lo != hi+1 {
		t.Errorf("expected G_SET_SP_HI immediately before G_SET_SP_LO:\n%s", f)
	}

	// A byte sized allocation is zero extended and the result rounded down to the alignment.
	for _, e1 := range []uint64{0, 1, 3, 4, 5, 0xff} {
		mc := sim.New(m)
		got, err := mc.Run("alloca4", e1)
		if err != nil {
			t.Fatal(err)
		}
		want := (uint64(sim.DefaultSP) - e1) &^ 3
		if diff := cmp.Diff([]uint64{want}, got); diff != "" {
			t.Errorf("@alloca4(%d) mismatch (-want +got):\n%s", e1, diff)
		}
		if uint64(mc.SP) != want {
			t.Errorf("@alloca4(%d): stack pointer is 0x%04x, want 0x%04x", e1, mc.SP, want)
		}
	}
}

// TestNotFolding checks that branches on a negation test the source with inverted polarity.
func TestNotFolding(t *testing.T) {
	m := legalized(t, parse(t, cfgSrc))
	f := m.Function("walk")
	for _, e1 := range instrsOf(f, types.Xor) {
		if e1.Def(0).Type() == types.S1 {
			t.Errorf("s1 negation left after legalization: %s", e1)
		}
	}
	brs := instrsOf(f, types.BrCondImm)
	if len(brs) != 1 {
		t.Fatalf("expected a single G_BRCOND_IMM, got %d:\n%s", len(brs), f)
	}
	if brs[0].Imm() != 0 {
		t.Errorf("branch on a negation tests for %d, want 0: %s", brs[0].Imm(), brs[0])
	}
}

// TestAddressing checks that constant offsets from globals fold into the global and byte offsets use G_INDEX.
func TestAddressing(t *testing.T) {
	m := legalized(t, parse(t, memSrc))
	f := m.Function("index")
	s := f.String()
	if !strings.Contains(s, "@buf+200") {
		t.Errorf("constant offset not folded into the global:\n%s", s)
	}
	if len(instrsOf(f, types.Index)) == 0 {
		t.Errorf("byte offset not lowered to G_INDEX:\n%s", s)
	}
}

// TestLibcalls checks that arithmetic without a native instruction calls the runtime helper of its width.
func TestLibcalls(t *testing.T) {
	m := legalized(t, parse(t, arithSrc))
	tests := []struct {
		fn   string
		want []string
	}{
		{"mul16", []string{"__mulhi3"}},
		{"mul1", []string{"__mulqi3"}},
		{"divrem16", []string{"__divhi3", "__modhi3", "__udivhi3", "__umodhi3"}},
	}
	for _, e1 := range tests {
		t.Run(e1.fn, func(t *testing.T) {
			var got []string
			for _, e2 := range instrsOf(m.Function(e1.fn), types.Call) {
				got = append(got, e2.Sym())
			}
			if diff := cmp.Diff(e1.want, got); diff != "" {
				t.Errorf("helpers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestLibcallName checks the helper names of the supported widths.
func TestLibcallName(t *testing.T) {
	tests := []struct {
		op   types.Opcode
		bits int
		want string
		err  bool
	}{
		{types.Mul, 8, "__mulqi3", false},
		{types.SDiv, 16, "__divhi3", false},
		{types.UDiv, 32, "__udivsi3", false},
		{types.SRem, 64, "__moddi3", false},
		{types.URem, 16, "__umodhi3", false},
		{types.Shl, 32, "__ashlsi3", false},
		{types.LShr, 8, "__lshrqi3", false},
		{types.AShr, 16, "__ashrhi3", false},
		{types.MemCpy, 0, "memcpy", false},
		{types.MemMove, 0, "memmove", false},
		{types.MemSet, 0, "memset", false},
		{types.Mul, 24, "", true},
		{types.Add, 16, "", true},
	}
	for _, e1 := range tests {
		got, err := LibcallName(e1.op, e1.bits)
		if (err != nil) != e1.err {
			t.Errorf("LibcallName(%s, %d): unexpected error state: %v", e1.op, e1.bits, err)
			continue
		}
		if got != e1.want {
			t.Errorf("LibcallName(%s, %d) = %q, want %q", e1.op, e1.bits, got, e1.want)
		}
	}
}

// TestLegalizeModule legalizes modules sequentially and in parallel.
func TestLegalizeModule(t *testing.T) {
	const bad = `
func @float(s16, s16) -> s16 {
bb.0:
  %0:s16 = G_ARG 0
  %1:s16 = G_ARG 1
  %2:s16 = G_FMUL %0, %1
  G_RET %2
}
`
	for _, e1 := range []int{1, 3, 64} {
		opt := util.Options{Threads: e1}

		m := parse(t, arithSrc+convSrc+shiftSrc)
		if err := LegalizeModule(opt, m); err != nil {
			t.Fatalf("%d thread(s): %s", e1, err)
		}
		for _, e2 := range m.Functions() {
			checkLegal(t, e2)
		}

		m = parse(t, arithSrc+bad)
		err := LegalizeModule(opt, m)
		if !errors.Is(err, ErrUnsupported) {
			t.Fatalf("%d thread(s): expected ErrUnsupported, got %v", e1, err)
		}
		var me *ModuleError
		if e1 > 1 && !errors.As(err, &me) {
			t.Errorf("%d thread(s): expected a *ModuleError, got %T", e1, err)
		}
		var ue *UnsupportedError
		if !errors.As(err, &ue) || ue.Function != "float" || ue.Op != types.FMul {
			t.Errorf("%d thread(s): unexpected error %v", e1, err)
		}
	}
}
