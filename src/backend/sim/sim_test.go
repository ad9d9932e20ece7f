package sim

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// define adds a single block function to m whose body is produced by build.
func define(t *testing.T, m *gmir.Module, name string, params, results []types.LLT, build func(bd *gmir.Builder)) *gmir.Function {
	t.Helper()
	f, err := m.CreateFunction(name, params, results)
	if err != nil {
		t.Fatal(err)
	}
	f.CreateBlock()
	build(gmir.NewBuilder(f))
	if err := gmir.VerifyFunction(f); err != nil {
		t.Fatalf("malformed test function:\n%s\n%s", err, f)
	}
	return f
}

func TestSbcFlags(t *testing.T) {
	m := gmir.CreateModule("sbc")
	define(t, m, "sbc", []types.LLT{types.S8, types.S8, types.S1},
		[]types.LLT{types.S8, types.S1, types.S1, types.S1, types.S1}, func(bd *gmir.Builder) {
			a := bd.BuildArg(types.S8, 0, gmir.ArgWhole)
			b := bd.BuildArg(types.S8, 1, gmir.ArgWhole)
			c := bd.BuildArg(types.S1, 2, gmir.ArgWhole)
			bd.BuildRet(bd.BuildSbc(a, b, c).Defs()...)
		})
	mc := New(m)

	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			for c := 0; c < 2; c++ {
				got, err := mc.Run("sbc", uint64(a), uint64(b), uint64(c))
				if err != nil {
					t.Fatal(err)
				}
				diff := a - b - (1 - c)
				res := uint64(byte(diff))
				signed := int(int8(a)) - int(int8(b)) - (1 - c)
				want := []uint64{
					res,
					boolean(diff >= 0),
					res >> 7,
					boolean(signed < -128 || signed > 127),
					boolean(res == 0),
				}
				if d := cmp.Diff(want, got); d != "" {
					t.Fatalf("G_SBC %#02x, %#02x, %d mismatch (-want +got):\n%s", a, b, c, d)
				}
			}
		}
	}
}

func TestShiftCarry(t *testing.T) {
	m := gmir.CreateModule("shift")
	for _, e1 := range []struct {
		name string
		op   types.Opcode
	}{{"shle", types.ShlE}, {"lshre", types.LShrE}} {
		op := e1.op
		define(t, m, e1.name, []types.LLT{types.S8, types.S1}, []types.LLT{types.S8, types.S1}, func(bd *gmir.Builder) {
			v := bd.BuildArg(types.S8, 0, gmir.ArgWhole)
			c := bd.BuildArg(types.S1, 1, gmir.ArgWhole)
			bd.BuildRet(bd.BuildShiftE(op, v, c).Defs()...)
		})
	}

	tests := []struct {
		fn   string
		v, c uint64
		want []uint64
	}{
		{"shle", 0x81, 0, []uint64{0x02, 1}},
		{"shle", 0x40, 1, []uint64{0x81, 0}},
		{"shle", 0xff, 1, []uint64{0xff, 1}},
		{"lshre", 0x81, 0, []uint64{0x40, 1}},
		{"lshre", 0x02, 1, []uint64{0x81, 0}},
		{"lshre", 0x00, 0, []uint64{0x00, 0}},
	}
	mc := New(m)
	for _, e1 := range tests {
		got, err := mc.Run(e1.fn, e1.v, e1.c)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(e1.want, got); d != "" {
			t.Errorf("%s %#02x, %d mismatch (-want +got):\n%s", e1.fn, e1.v, e1.c, d)
		}
	}
}

func TestRuntimeHelpers(t *testing.T) {
	m := gmir.CreateModule("helpers")
	binary := func(name, sym string, a, b, res types.LLT) {
		define(t, m, name, []types.LLT{a, b}, []types.LLT{res}, func(bd *gmir.Builder) {
			x := bd.BuildArg(a, 0, gmir.ArgWhole)
			y := bd.BuildArg(b, 1, gmir.ArgWhole)
			r := bd.Function().NewRegister(res)
			bd.BuildCall(sym, []*gmir.Register{r}, []*gmir.Register{x, y})
			bd.BuildRet(r)
		})
	}
	binary("mulhi", "__mulhi3", types.S16, types.S16, types.S16)
	binary("divqi", "__divqi3", types.S8, types.S8, types.S8)
	binary("udivhi", "__udivhi3", types.S16, types.S16, types.S16)
	binary("modsi", "__modsi3", types.S32, types.S32, types.S32)
	binary("umoddi", "__umoddi3", types.S64, types.S64, types.S64)
	binary("ashlsi", "__ashlsi3", types.S32, types.S8, types.S32)
	binary("ashrhi", "__ashrhi3", types.S16, types.S8, types.S16)
	binary("lshrdi", "__lshrdi3", types.S64, types.S8, types.S64)
	binary("short", "__mulhi3", types.S16, types.S8, types.S16)

	tests := []struct {
		fn   string
		a, b uint64
		want uint64
		err  string
	}{
		{fn: "mulhi", a: 300, b: 300, want: 300 * 300 & 0xffff},
		{fn: "divqi", a: 0xf9, b: 2, want: 0xfd},
		{fn: "divqi", a: 0x80, b: 0xff, want: 0x80},
		{fn: "udivhi", a: 0xfffe, b: 7, want: 0xfffe / 7},
		{fn: "modsi", a: 0xfffffff9, b: 4, want: 0xfffffffd},
		{fn: "umoddi", a: 1 << 40, b: 1000, want: (1 << 40) % 1000},
		{fn: "ashlsi", a: 1, b: 31, want: 0x80000000},
		{fn: "ashlsi", a: 1, b: 32, want: 0},
		{fn: "ashrhi", a: 0x8000, b: 15, want: 0xffff},
		{fn: "lshrdi", a: 1 << 63, b: 63, want: 1},
		{fn: "udivhi", a: 5, b: 0, err: "division by zero"},
		{fn: "short", a: 5, b: 5, err: "expected 4 argument bytes, got 3"},
	}
	mc := New(m)
	for _, e1 := range tests {
		got, err := mc.Run(e1.fn, e1.a, e1.b)
		if e1.err != "" {
			if err == nil || !strings.Contains(err.Error(), e1.err) {
				t.Errorf("%s(%#x, %#x): expected error containing %q, got %v", e1.fn, e1.a, e1.b, e1.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s(%#x, %#x): %s", e1.fn, e1.a, e1.b, err)
			continue
		}
		if got[0] != e1.want {
			t.Errorf("%s(%#x, %#x): got %#x, want %#x", e1.fn, e1.a, e1.b, got[0], e1.want)
		}
	}
}

func TestMemory(t *testing.T) {
	m := gmir.CreateModule("memory")
	m.SetGlobal("buf", 0x0300)
	define(t, m, "store", []types.LLT{types.S32}, nil, func(bd *gmir.Builder) {
		v := bd.BuildArg(types.S32, 0, gmir.ArgWhole)
		bd.BuildStore(v, bd.BuildGlobal("buf", 2))
		bd.BuildRet()
	})
	define(t, m, "fill", []types.LLT{types.S8}, nil, func(bd *gmir.Builder) {
		v := bd.BuildArg(types.S8, 0, gmir.ArgWhole)
		dst := bd.BuildGlobal("buf", 16)
		n := bd.BuildConstant(types.S16, 5)
		bd.BuildCall("memset", nil, []*gmir.Register{dst, v, n})
		bd.BuildRet()
	})
	define(t, m, "copy", nil, nil, func(bd *gmir.Builder) {
		dst := bd.BuildGlobal("buf", 32)
		src := bd.BuildGlobal("buf", 16)
		n := bd.BuildConstant(types.S16, 3)
		bd.BuildCall("memcpy", nil, []*gmir.Register{dst, src, n})
		bd.BuildRet()
	})
	define(t, m, "overlap", nil, nil, func(bd *gmir.Builder) {
		dst := bd.BuildGlobal("buf", 1)
		src := bd.BuildGlobal("buf", 0)
		n := bd.BuildConstant(types.S16, 4)
		bd.BuildInstr(types.MemMove, nil, dst, src, n)
		bd.BuildRet()
	})

	mc := New(m)
	if _, err := mc.Run("store", 0x11223344); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]byte{0, 0, 0x44, 0x33, 0x22, 0x11}, mc.Mem[0x0300:0x0306]); d != "" {
		t.Errorf("G_STORE is not least significant byte first (-want +got):\n%s", d)
	}
	if v := mc.Load(0x0302, 4); v != 0x11223344 {
		t.Errorf("Load: got %#x, want 0x11223344", v)
	}

	if _, err := mc.Run("fill", 0xa5); err != nil {
		t.Fatal(err)
	}
	if _, err := mc.Run("copy"); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]byte{0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0}, mc.Mem[0x0310:0x0316]); d != "" {
		t.Errorf("memset mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]byte{0xa5, 0xa5, 0xa5, 0}, mc.Mem[0x0320:0x0324]); d != "" {
		t.Errorf("memcpy mismatch (-want +got):\n%s", d)
	}

	mc.Store(0x0300, 4, 0x04030201)
	if _, err := mc.Run("overlap"); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]byte{1, 1, 2, 3, 4}, mc.Mem[0x0300:0x0305]); d != "" {
		t.Errorf("G_MEMMOVE of overlapping ranges mismatch (-want +got):\n%s", d)
	}
}

func TestVarArgs(t *testing.T) {
	m := gmir.CreateModule("varargs")
	f := define(t, m, "sum", []types.LLT{types.S8}, []types.LLT{types.S16}, func(bd *gmir.Builder) {
		f := bd.Function()
		f.Frame().VarArgsSlot = f.CreateStackSlot(4)
		cell := bd.BuildFrameIndex(f.CreateStackSlot(2))
		bd.BuildInstr(types.VAStart, nil, cell)
		a := bd.Build(types.VAArg, []types.LLT{types.S16}, cell).Def(0)
		b := bd.Build(types.VAArg, []types.LLT{types.S16}, cell).Def(0)
		n := bd.BuildCast(types.ZExt, types.S16, bd.BuildArg(types.S8, 0, gmir.ArgWhole))
		bd.BuildRet(bd.BuildBinary(types.Add, bd.BuildBinary(types.Add, a, b), n))
	})
	if !f.IsVariadic() {
		t.Fatal("expected a variadic function")
	}

	mc := New(m)
	got, err := mc.RunVariadic("sum", []uint64{3}, []byte{0x34, 0x12, 0x01, 0x01})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x1338 {
		t.Errorf("got %#x, want 0x1338", got[0])
	}
	if v := mc.Load(DefaultFrameBase, 4); v != 0x01011234 {
		t.Errorf("variadic save area holds %#x, want 0x01011234", v)
	}
}

func TestStackPointer(t *testing.T) {
	m := gmir.CreateModule("stack")
	define(t, m, "alloc", []types.LLT{types.S16}, []types.LLT{types.P}, func(bd *gmir.Builder) {
		n := bd.BuildArg(types.S16, 0, gmir.ArgWhole)
		r := bd.Function().NewRegister(types.P)
		bd.BuildWith(types.DynStackAlloc, []*gmir.Register{r}, []*gmir.Register{n},
			gmir.Operands{Imm: 4, Part: gmir.ArgWhole})
		bd.BuildRet(r)
	})
	define(t, m, "move", nil, []types.LLT{types.P}, func(bd *gmir.Builder) {
		bd.BuildSetSP(types.SetSPHi, bd.BuildConstant(types.S8, 0x12))
		bd.BuildSetSP(types.SetSPLo, bd.BuildConstant(types.S8, 0x34))
		bd.BuildRet(bd.BuildReadSP())
	})

	mc := New(m)
	got, err := mc.Run("alloc", 6)
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64((DefaultSP - 6) &^ 3); got[0] != want {
		t.Errorf("G_DYN_STACKALLOC: got %#x, want %#x", got[0], want)
	}

	got, err = mc.Run("move")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x1234 || mc.SP != 0x1234 {
		t.Errorf("stack pointer: got %#x and %#x, want 0x1234", got[0], mc.SP)
	}
	want := []SPWrite{{High: true, Value: 0x12}, {High: false, Value: 0x34}}
	if d := cmp.Diff(want, mc.SPWrites); d != "" {
		t.Errorf("stack pointer writes mismatch (-want +got):\n%s", d)
	}
}

func TestRunErrors(t *testing.T) {
	m := gmir.CreateModule("errors")
	f, err := m.CreateFunction("loop", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := f.CreateBlock()
	gmir.NewBuilder(f).BuildBr(b)
	define(t, m, "rec", nil, nil, func(bd *gmir.Builder) {
		bd.BuildCall("rec", nil, nil)
		bd.BuildRet()
	})
	define(t, m, "float", []types.LLT{types.S32}, []types.LLT{types.S32}, func(bd *gmir.Builder) {
		a := bd.BuildArg(types.S32, 0, gmir.ArgWhole)
		bd.BuildRet(bd.BuildBinary(types.FAdd, a, a))
	})
	define(t, m, "extern", nil, nil, func(bd *gmir.Builder) {
		bd.BuildCall("putchar", nil, nil)
		bd.BuildRet()
	})

	mc := New(m)
	mc.MaxSteps = 100
	tests := []struct {
		fn   string
		args []uint64
		want string
	}{
		{"loop", nil, "function @loop: step limit of 100 exceeded"},
		{"missing", nil, "function @missing is not defined"},
		{"float", nil, "function @float takes 1 arguments, got 0"},
		{"extern", nil, "call to undefined function @putchar"},
	}
	for _, e1 := range tests {
		_, err := mc.Run(e1.fn, e1.args...)
		if err == nil || !strings.Contains(err.Error(), e1.want) {
			t.Errorf("%s: expected error containing %q, got %v", e1.fn, e1.want, err)
		}
	}

	mc.MaxSteps = 0
	if _, err := mc.Run("rec"); err == nil || !strings.Contains(err.Error(), "call depth exceeds") {
		t.Errorf("expected call depth error, got %v", err)
	}
	if _, err := mc.Run("float", 0); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
