package frontend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// TestParseRoundTrip parses every bundled gMIR file, prints it and checks that parsing the print gives the same text.
func TestParseRoundTrip(t *testing.T) {
	files, err := filepath.Glob("../../resources/gmir/*.gmir")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no gMIR sources found")
	}
	for _, e1 := range files {
		t.Run(filepath.Base(e1), func(t *testing.T) {
			b, err := os.ReadFile(e1)
			if err != nil {
				t.Fatal(err)
			}
			m, err := Parse("first", string(b))
			if err != nil {
				t.Fatalf("parse: %s", err)
			}
			if err := gmir.Verify(m); err != nil {
				t.Fatalf("verify: %s", err)
			}
			again, err := Parse("second", m.String())
			if err != nil {
				t.Fatalf("reparse: %s\n%s", err, m)
			}
			if diff := cmp.Diff(m.String(), again.String()); diff != "" {
				t.Errorf("round trip mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestParseOperands(t *testing.T) {
	src := `
global @tab = 0x0340

func @f(s16, p) -> s8 {
  %stack.0 size 4
  %stack.1 size 16 vararg
bb.0:
  %0:s8 = G_ARG 0, 1
  %1:p = G_GLOBAL_VALUE @tab-2
  %2:p = G_FRAME_INDEX %stack.1
  %3:s1 = G_ICMP ult %0, %0
  G_BRCOND_IMM %3, 0, bb.1, bb.2
bb.1:
  %5:s16 = G_CONSTANT 0x10
  %4:p = G_DYN_STACKALLOC %5, 4
  G_SET_SP_HI %0, implicit-def $rs0, implicit $rs0
  G_SET_SP_LO %0, implicit-def $rs0, implicit $rs0
  G_BR bb.2
bb.2:
  %6:s8 = G_PHI %0, bb.0, %0, bb.1
  G_RET %6
}
`
	m, err := Parse("ops", src)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if err := gmir.Verify(m); err != nil {
		t.Fatalf("verify: %s", err)
	}
	f := m.Function("f")
	if diff := cmp.Diff(gmir.FrameInfo{Slots: []int{4, 16}, VarArgsSlot: 1}, *f.Frame()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}

	want := map[types.Opcode]string{
		types.Arg:           "%0:s8 = G_ARG 0, 1",
		types.GlobalValue:   "%1:p = G_GLOBAL_VALUE @tab-2",
		types.FrameIndex:    "%2:p = G_FRAME_INDEX %stack.1",
		types.ICmp:          "%3:s1 = G_ICMP ult %0, %0",
		types.BrCondImm:     "G_BRCOND_IMM %3, 0, bb.1, bb.2",
		types.DynStackAlloc: "%4:p = G_DYN_STACKALLOC %5, 4",
		types.SetSPHi:       "G_SET_SP_HI %0, implicit-def $rs0, implicit $rs0",
		types.Phi:           "%6:s8 = G_PHI %0, bb.0, %0, bb.1",
	}
	for _, e1 := range f.Blocks() {
		for _, e2 := range e1.Instrs() {
			if s, ok := want[e2.Opcode()]; ok && e2.String() != s {
				t.Errorf("got %q, want %q", e2.String(), s)
			}
		}
	}
}

// TestParseCompare checks that a G_ICMP predicate is followed by its operands without a comma, both when parsing
// and when printing.
func TestParseCompare(t *testing.T) {
	for _, e1 := range []string{"eq", "ne", "ugt", "uge", "ult", "ule", "sgt", "sge", "slt", "sle"} {
		t.Run(e1, func(t *testing.T) {
			line := fmt.Sprintf("%%2:s1 = G_ICMP %s %%0, %%1", e1)
			src := "func @f(s8, s8) -> s8 {\nbb.0:\n  %0:s8 = G_ARG 0\n  %1:s8 = G_ARG 1\n  " + line +
				"\n  %3:s8 = G_ZEXT %2\n  G_RET %3\n}\n"
			m, err := Parse("cmp", src)
			if err != nil {
				t.Fatalf("parse: %s", err)
			}
			inst := m.Function("f").Register(2).Def()
			if inst.Pred().String() != e1 {
				t.Errorf("predicate %s, want %s", inst.Pred(), e1)
			}
			if got := inst.String(); got != line {
				t.Errorf("got %q, want %q", got, line)
			}
			again, err := Parse("again", m.String())
			if err != nil {
				t.Fatalf("reparse: %s\n%s", err, m)
			}
			if diff := cmp.Diff(m.String(), again.String()); diff != "" {
				t.Errorf("round trip mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"opcode", "func @f() {\nbb.0:\n  G_FROB\n}", "unknown opcode \"G_FROB\""},
		{"toplevel", "bb.0:", "expected global or func"},
		{"address", "global @g = 0x10000", "outside the address space"},
		{"immediates", "func @f() {\nbb.0:\n  %0:s8 = G_CONSTANT\n  G_RET\n}", "G_CONSTANT needs one def"},
		{"redefined", "func @f() {\nbb.0:\n  G_BR bb.0\nbb.0:\n  G_BR bb.0\n}", "defined twice"},
		{"lexer", "func @f() {\nbb.0:\n  %x\n}", "malformed register"},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			_, err := Parse(e1.name, e1.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %v", err)
			}
			if !strings.Contains(se.Msg, e1.want) {
				t.Errorf("message %q does not mention %q", se.Msg, e1.want)
			}
		})
	}
}

func TestTokenStream(t *testing.T) {
	ts, err := TokenStream("func @f() {\n}")
	if err != nil {
		t.Fatal(err)
	}
	for _, e1 := range []string{"FUNC", "SYMBOL", "\"@f\"", "line: 2:1"} {
		if !strings.Contains(ts, e1) {
			t.Errorf("token stream lacks %q:\n%s", e1, ts)
		}
	}
	if _, err := TokenStream("%x"); err == nil {
		t.Errorf("expected lexer error")
	}
}
