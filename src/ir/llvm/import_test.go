package llvm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"moslegal/src/backend/sim"
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
	"moslegal/src/legalize"
)

const testIR = `
@buf = global [16 x i8] zeroinitializer
@cnt = global i16 0

declare void @llvm.va_start(i8*)
declare void @llvm.va_end(i8*)
declare void @llvm.memset.p0i8.i16(i8*, i8, i16, i1)

define i16 @add(i16 %a, i16 %b) {
entry:
  %s = add i16 %a, %b
  ret i16 %s
}

define i8 @sum(i8 %n) {
entry:
  br label %loop
loop:
  %i = phi i8 [ 0, %entry ], [ %i1, %loop ]
  %acc = phi i8 [ 0, %entry ], [ %acc1, %loop ]
  %acc1 = add i8 %acc, %i
  %i1 = add i8 %i, 1
  %c = icmp ult i8 %i1, %n
  br i1 %c, label %loop, label %exit
exit:
  ret i8 %acc1
}

define i8 @elem(i16 %i) {
entry:
  %p = getelementptr inbounds [16 x i8], [16 x i8]* @buf, i16 0, i16 %i
  store i8 7, i8* %p
  %q = getelementptr inbounds [16 x i8], [16 x i8]* @buf, i16 0, i16 3
  %v = load i8, i8* %q
  ret i8 %v
}

define i32 @widen(i8 %x, i1 %s) {
entry:
  %a = sext i8 %x to i32
  %b = zext i8 %x to i32
  %r = select i1 %s, i32 %a, i32 %b
  ret i32 %r
}

define i8 @fill(i8 %v) {
entry:
  %p = getelementptr inbounds [16 x i8], [16 x i8]* @buf, i16 0, i16 0
  call void @llvm.memset.p0i8.i16(i8* %p, i8 %v, i16 16, i1 false)
  %q = load i8, i8* getelementptr inbounds ([16 x i8], [16 x i8]* @buf, i16 0, i16 15)
  ret i8 %q
}

define i16 @va(i8 %n, ...) {
entry:
  %ap = alloca i8*
  %ap1 = bitcast i8** %ap to i8*
  call void @llvm.va_start(i8* %ap1)
  %a = va_arg i8** %ap, i8
  %b = va_arg i8** %ap, i16
  call void @llvm.va_end(i8* %ap1)
  %w = zext i8 %a to i16
  %r = add i16 %w, %b
  ret i16 %r
}

define i8* @dyn(i8 %n) {
entry:
  %p = alloca i8, i8 %n
  ret i8* %p
}

define i16 @twice(i16 %x) {
entry:
  %r = call i16 @add(i16 %x, i16 %x)
  ret i16 %r
}
`

// ---------------------
// ----- functions -----
// ---------------------

// importT imports src and verifies the result.
func importT(t *testing.T, src string) *gmir.Module {
	t.Helper()
	m, err := ImportSource("test", src)
	if err != nil {
		t.Fatalf("import: %s", err)
	}
	if err := gmir.Verify(m); err != nil {
		t.Fatalf("verify: %s\n%s", err, m)
	}
	return m
}

// legalizedT returns a legalized copy of m.
func legalizedT(t *testing.T, m *gmir.Module) *gmir.Module {
	t.Helper()
	res := m.Clone()
	for _, e1 := range res.Functions() {
		if err := legalize.Legalize(e1); err != nil {
			t.Fatalf("legalize @%s: %s", e1.Name(), err)
		}
	}
	return res
}

func TestImport(t *testing.T) {
	m := importT(t, testIR)
	want := []string{"add", "sum", "elem", "widen", "fill", "va", "dyn", "twice"}
	var got []string
	for _, e1 := range m.Functions() {
		got = append(got, e1.Name())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}
	if addr, ok := m.Global("buf"); !ok || addr != GlobalBase {
		t.Errorf("@buf at %#x (%t), want %#x", addr, ok, GlobalBase)
	}
	if addr, ok := m.Global("cnt"); !ok || addr != GlobalBase+16 {
		t.Errorf("@cnt at %#x (%t), want %#x", addr, ok, GlobalBase+16)
	}

	va := m.Function("va")
	if !va.IsVariadic() || va.Frame().Slots[va.Frame().VarArgsSlot] != VarArgsSaveSize {
		t.Errorf("@va frame: %+v", *va.Frame())
	}
	if !strings.Contains(m.Function("fill").String(), "@buf+15") {
		t.Errorf("constant address not folded into global:\n%s", m.Function("fill"))
	}
}

// TestImportRun executes the imported functions before and after legalization.
func TestImportRun(t *testing.T) {
	before := importT(t, testIR)
	after := legalizedT(t, before)

	tests := []struct {
		name string
		args []uint64
		want []uint64
	}{
		{"add", []uint64{0x12ff, 0x0001}, []uint64{0x1300}},
		{"sum", []uint64{5}, []uint64{10}},
		{"sum", []uint64{0}, []uint64{0}},
		{"elem", []uint64{3}, []uint64{7}},
		{"elem", []uint64{2}, []uint64{0}},
		{"widen", []uint64{0x80, 1}, []uint64{0xffffff80}},
		{"widen", []uint64{0x80, 0}, []uint64{0x80}},
		{"fill", []uint64{0xa5}, []uint64{0xa5}},
		{"dyn", []uint64{6}, []uint64{sim.DefaultSP - 6}},
		{"twice", []uint64{0x4000}, []uint64{0x8000}},
	}
	for _, e1 := range tests {
		for _, e2 := range []*gmir.Module{before, after} {
			got, err := sim.New(e2).Run(e1.name, e1.args...)
			if err != nil {
				t.Errorf("@%s%v: %s", e1.name, e1.args, err)
				continue
			}
			if diff := cmp.Diff(e1.want, got); diff != "" {
				t.Errorf("@%s%v mismatch (-want +got):\n%s", e1.name, e1.args, diff)
			}
		}
	}

	for _, e1 := range []*gmir.Module{before, after} {
		got, err := sim.New(e1).RunVariadic("va", []uint64{2}, []byte{0x11, 0x22, 0x33})
		if err != nil {
			t.Fatalf("@va: %s", err)
		}
		if diff := cmp.Diff([]uint64{0x3333}, got); diff != "" {
			t.Errorf("@va mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestImportFloat(t *testing.T) {
	m := importT(t, `
define float @fadd(float %a, float %b) {
entry:
  %s = fadd float %a, %b
  ret float %s
}
`)
	f := m.Function("fadd")
	found := false
	for _, e1 := range f.Blocks() {
		for _, e2 := range e1.Instrs() {
			found = found || e2.Opcode() == types.FAdd
		}
	}
	if !found {
		t.Fatalf("no G_FADD in:\n%s", f)
	}
	if err := legalize.Legalize(f); err == nil {
		t.Errorf("legalizing a float addition succeeded")
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "switch",
			src: `
define i8 @sw(i8 %x) {
entry:
  switch i8 %x, label %d [ i8 0, label %z ]
z:
  ret i8 1
d:
  ret i8 0
}
`,
			want: "unsupported instruction",
		},
		{
			name: "intrinsic",
			src: `
declare i8* @llvm.stacksave()

define i8* @ss() {
entry:
  %p = call i8* @llvm.stacksave()
  ret i8* %p
}
`,
			want: "unsupported intrinsic llvm.stacksave",
		},
		{
			name: "syntax",
			src:  "define i8 @broken( {",
			want: "could not parse LLVM IR",
		},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			_, err := ImportSource(e1.name, e1.src)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), e1.want) {
				t.Errorf("error %q does not mention %q", err, e1.want)
			}
		})
	}
}

const intrinsicIR = `
declare i8 @llvm.fshl.i8(i8, i8, i8)
declare i16 @llvm.fshr.i16(i16, i16, i16)
declare i16 @llvm.ctlz.i16(i16, i1)
declare i8 @llvm.ctpop.i8(i8)
declare i8 @llvm.uadd.sat.i8(i8, i8)
declare i8 @llvm.bitreverse.i8(i8)

define i8 @funnel(i8 %a, i8 %b, i8 %c) {
entry:
  %r = call i8 @llvm.fshl.i8(i8 %a, i8 %b, i8 %c)
  ret i8 %r
}

define i16 @funnelr(i16 %a, i16 %b) {
entry:
  %r = call i16 @llvm.fshr.i16(i16 %a, i16 %b, i16 4)
  ret i16 %r
}

define i8 @rot(i8 %a, i8 %c) {
entry:
  %r = call i8 @llvm.fshl.i8(i8 %a, i8 %a, i8 %c)
  ret i8 %r
}

define i16 @lz(i16 %x) {
entry:
  %r = call i16 @llvm.ctlz.i16(i16 %x, i1 false)
  ret i16 %r
}

define i8 @pop(i8 %x) {
entry:
  %r = call i8 @llvm.ctpop.i8(i8 %x)
  ret i8 %r
}

define i8 @sat(i8 %a, i8 %b) {
entry:
  %r = call i8 @llvm.uadd.sat.i8(i8 %a, i8 %b)
  ret i8 %r
}

define i8 @rev(i8 %x) {
entry:
  %r = call i8 @llvm.bitreverse.i8(i8 %x)
  ret i8 %r
}

define i8 @frz(i8 %x) {
entry:
  %f = freeze i8 %x
  ret i8 %f
}
`

// TestImportIntrinsics checks the generic opcodes of bit manipulation intrinsics and freeze, and runs them before
// and after legalization.
func TestImportIntrinsics(t *testing.T) {
	before := importT(t, intrinsicIR)
	ops := map[string]types.Opcode{
		"funnel":  types.FShl,
		"funnelr": types.FShr,
		"rot":     types.RotL,
		"lz":      types.CtLZ,
		"pop":     types.CtPop,
		"sat":     types.UAddSat,
		"rev":     types.BitReverse,
		"frz":     types.Freeze,
	}
	for name, op := range ops {
		found := false
		f := before.Function(name)
		for _, e1 := range f.Blocks() {
			for _, e2 := range e1.Instrs() {
				found = found || e2.Opcode() == op
			}
		}
		if !found {
			t.Errorf("no %s in:\n%s", op, f)
		}
	}

	after := legalizedT(t, before)
	tests := []struct {
		name string
		args []uint64
		want uint64
	}{
		{"funnel", []uint64{0x81, 0xc0, 3}, 0x0e},
		{"funnel", []uint64{0x81, 0xc0, 8}, 0x81},
		{"funnelr", []uint64{0x1234, 0x5678}, 0x4567},
		{"rot", []uint64{0x81, 1}, 0x03},
		{"lz", []uint64{0x0100}, 7},
		{"lz", []uint64{0}, 16},
		{"pop", []uint64{0xb5}, 5},
		{"sat", []uint64{0xf0, 0x20}, 0xff},
		{"sat", []uint64{1, 2}, 3},
		{"rev", []uint64{0x35}, 0xac},
		{"frz", []uint64{7}, 7},
	}
	for _, e1 := range tests {
		for _, e2 := range []*gmir.Module{before, after} {
			got, err := sim.New(e2).Run(e1.name, e1.args...)
			if err != nil {
				t.Errorf("@%s%v: %s", e1.name, e1.args, err)
				continue
			}
			if diff := cmp.Diff([]uint64{e1.want}, got); diff != "" {
				t.Errorf("@%s%v mismatch (-want +got):\n%s", e1.name, e1.args, diff)
			}
		}
	}
}
