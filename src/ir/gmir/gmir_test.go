package gmir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"moslegal/src/ir/gmir/types"
)

// diamond builds a function selecting between two constants over a diamond of blocks.
func diamond(t *testing.T) (*Module, *Function) {
	t.Helper()
	m := CreateModule("test")
	m.SetGlobal("buf", 0x0300)
	f, err := m.CreateFunction("pick", []types.LLT{types.S8, types.S8}, []types.LLT{types.S8})
	if err != nil {
		t.Fatal(err)
	}
	entry, thn, els, join := f.CreateBlock(), f.CreateBlock(), f.CreateBlock(), f.CreateBlock()
	bd := NewBuilder(f)
	a := bd.BuildArg(types.S8, 0, ArgWhole)
	b := bd.BuildArg(types.S8, 1, ArgWhole)
	c := bd.BuildICmp(types.PredULT, a, b)
	bd.BuildBrCond(c, thn, els)

	bd.SetInsertAtEnd(thn)
	x := bd.BuildConstant(types.S8, 255)
	bd.BuildBr(join)

	bd.SetInsertAtEnd(els)
	y := bd.BuildBinary(types.Add, a, b)
	bd.BuildStore(y, bd.BuildGlobal("buf", 2))
	bd.BuildBr(join)

	bd.SetInsertAtEnd(join)
	r := f.NewRegister(types.S8)
	bd.BuildPhi(r, []*Register{x, y}, []*Block{thn, els})
	bd.BuildRet(r)

	if entry != f.Entry() {
		t.Fatal("first block is not the entry block")
	}
	return m, f
}

func TestBuilder(t *testing.T) {
	m, f := diamond(t)
	if err := Verify(m); err != nil {
		t.Fatal(err)
	}
	want := `global @buf = 0x0300

func @pick(s8, s8) -> s8 {
bb.0:
  %0:s8 = G_ARG 0
  %1:s8 = G_ARG 1
  %2:s1 = G_ICMP ult %0, %1
  G_BRCOND %2, bb.1, bb.2
bb.1:
  %3:s8 = G_CONSTANT -1
  G_BR bb.3
bb.2:
  %4:s8 = G_ADD %0, %1
  %5:p = G_GLOBAL_VALUE @buf+2
  G_STORE %4, %5
  G_BR bb.3
bb.3:
  %6:s8 = G_PHI %3, bb.1, %4, bb.2
  G_RET %6
}
`
	if diff := cmp.Diff(want, m.String()); diff != "" {
		t.Errorf("module text mismatch (-want +got):\n%s", diff)
	}

	if s := f.Entry().Successors(); len(s) != 2 || s[0] != f.Block(1) || s[1] != f.Block(2) {
		t.Errorf("successors of bb.0: got %v", s)
	}
	if got := len(f.Block(3).Predecessors()); got != 2 {
		t.Errorf("bb.3 has %d predecessors, want 2", got)
	}
	if got := f.Block(3).FirstNonPhi().Opcode(); got != types.Ret {
		t.Errorf("first non-PHI of bb.3 is %s, want G_RET", got)
	}
	if v, ok := f.Register(3).ConstantValue(); !ok || v != -1 {
		t.Errorf("constant value of %%3: got %d, %t", v, ok)
	}
}

func TestReplaceAndErase(t *testing.T) {
	m, f := diamond(t)
	a, b, sum := f.Register(0), f.Register(1), f.Register(4)

	bd := NewBuilder(f)
	bd.SetInsertBefore(sum.Def())
	d := bd.BuildBinary(types.Sub, a, b)
	f.ReplaceAllUses(sum, d)
	if sum.HasUsers() {
		t.Fatalf("%s still has users: %v", sum, sum.Users())
	}
	add := sum.Def()
	if !add.IsDead() {
		t.Fatalf("%s should be dead", add)
	}
	add.Erase()
	if !add.IsErased() || sum.Def() != nil {
		t.Error("erased instruction is still attached")
	}
	if got := len(a.Users()); got != 2 {
		t.Errorf("%s has %d users, want 2", a, got)
	}
	if err := Verify(m); err != nil {
		t.Fatal(err)
	}
	if s := f.Block(2).String(); !strings.Contains(s, "%7:s8 = G_SUB %0, %1\n  %5:p") {
		t.Errorf("unexpected bb.2:\n%s", s)
	}
	if got := f.Block(3).Instrs()[0].IncomingFor(f.Block(2)); got != d {
		t.Errorf("PHI reads %s from bb.2, want %s", got, d)
	}

	// Stores and terminators are never dead.
	for _, e1 := range f.Instrs() {
		if e1.Opcode() == types.Store || e1.Opcode().IsTerminator() {
			if e1.IsDead() {
				t.Errorf("%s reported dead", e1)
			}
		}
	}
}

func TestClone(t *testing.T) {
	m, f := diamond(t)
	c := m.Clone()
	if c.String() != m.String() {
		t.Fatalf("clone differs:\n%s\n%s", m, c)
	}
	cf := c.Function("pick")
	if cf == f || cf.Register(4) == f.Register(4) || cf.Block(3) == f.Block(3) {
		t.Fatal("clone shares state with the original")
	}

	// Mutating the clone leaves the original untouched.
	before := m.String()
	inst := cf.Register(4).Def()
	inst.SetUse(1, cf.Register(0))
	cf.Block(3).Instrs()[0].Erase()
	c.SetGlobal("buf", 0x0400)
	if m.String() != before {
		t.Errorf("original changed after mutating the clone:\n%s", m)
	}
	if _, err := c.CreateFunction("pick", nil, nil); err == nil {
		t.Error("expected duplicate function error")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *Function, bd *Builder)
		want  string
	}{
		{"unterminated", func(f *Function, bd *Builder) {
			bd.BuildConstant(types.S8, 1)
		}, "block is not terminated"},
		{"arity", func(f *Function, bd *Builder) {
			a := bd.BuildConstant(types.S8, 1)
			bd.BuildInstr(types.Add, []*Register{f.NewRegister(types.S8)}, a)
			bd.BuildRet(a)
		}, "expected 1 defs and 2 uses"},
		{"ret", func(f *Function, bd *Builder) {
			bd.BuildRet(bd.BuildConstant(types.S16, 1))
		}, "returns 2 bytes, function declares 1"},
		{"undefined", func(f *Function, bd *Builder) {
			bd.BuildRet(f.NewRegister(types.S8))
		}, "%0 is used but never defined"},
		{"type", func(f *Function, bd *Builder) {
			bd.BuildRet(bd.BuildConstant(types.Scalar(12), 1))
		}, "scalar type s12"},
		{"compare", func(f *Function, bd *Builder) {
			a := bd.BuildConstant(types.S8, 1)
			b := bd.BuildConstant(types.S16, 1)
			bd.BuildICmp(types.PredEQ, a, b)
			bd.BuildRet(a)
		}, "comparison operands differ in type"},
		{"terminator", func(f *Function, bd *Builder) {
			a := bd.BuildConstant(types.S8, 1)
			bd.BuildRet(a)
			bd.BuildRet(a)
		}, "terminator in the middle of the block"},
		{"merge", func(f *Function, bd *Builder) {
			a := bd.BuildConstant(types.S8, 1)
			bd.BuildMergeNew(types.S32, []*Register{a, a})
			bd.BuildRet(a)
		}, "pieces don't add up to the merged width"},
		{"arg", func(f *Function, bd *Builder) {
			bd.BuildRet(bd.BuildArg(types.S8, 1, ArgWhole))
		}, "parameter 1 does not exist"},
	}
	for _, e1 := range tests {
		m := CreateModule("verify")
		f, err := m.CreateFunction(e1.name, nil, []types.LLT{types.S8})
		if err != nil {
			t.Fatal(err)
		}
		f.CreateBlock()
		e1.build(f, NewBuilder(f))
		err = Verify(m)
		if err == nil || !strings.Contains(err.Error(), e1.want) {
			t.Errorf("%s: expected error containing %q, got %v", e1.name, e1.want, err)
		}
	}

	m := CreateModule("empty")
	if _, err := m.CreateFunction("nobody", nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := Verify(m); err == nil || !strings.Contains(err.Error(), "has no basic blocks") {
		t.Errorf("expected missing block error, got %v", err)
	}
}
