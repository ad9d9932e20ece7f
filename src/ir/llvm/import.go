// Package llvm translates textual LLVM IR into generic machine IR, using the system installed LLVM runtime to parse
// the source.
package llvm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
	"moslegal/src/logger"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// translator holds the state of the translation of a single LLVM function.
type translator struct {
	fn     llvm.Value                      // LLVM function being translated.
	f      *gmir.Function                  // Function being built.
	bd     *gmir.Builder                   // Builder positioned at the current instruction.
	pro    *gmir.Builder                   // Builder positioned before the prologue terminator.
	vals   map[llvm.Value]*gmir.Register   // Registers of LLVM instructions and arguments.
	blocks map[llvm.BasicBlock]*gmir.Block // Blocks of LLVM basic blocks.
	cur    *gmir.Block                     // Block of the instruction being translated.
}

// ---------------------
// ----- Constants -----
// ---------------------

// GlobalBase is the address of the first global variable.
const GlobalBase = 0x0200

// VarArgsSaveSize is the size in bytes of the variadic argument save area of imported variadic functions.
const VarArgsSaveSize = 16

const mapSize = 64 // Predefined size of the per function value map.

// ---------------------
// ----- functions -----
// ---------------------

// ImportSource parses src as textual LLVM IR and translates it into a gMIR module called name.
func ImportSource(name, src string) (*gmir.Module, error) {
	tmp, err := os.CreateTemp("", "moslegal-*.ll")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.WriteString(src); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return importFile(name, tmp.Name())
}

// ImportFile parses the textual LLVM IR file at path and translates it into a gMIR module.
func ImportFile(path string) (*gmir.Module, error) {
	return importFile(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), path)
}

// importFile parses the file at path in a fresh LLVM context.
func importFile(name, path string) (*gmir.Module, error) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	buf, err := llvm.NewMemoryBufferFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	// The parser takes ownership of the buffer.
	mod, err := ctx.ParseIR(buf)
	if err != nil {
		return nil, fmt.Errorf("could not parse LLVM IR: %w", err)
	}
	defer mod.Dispose()
	return Import(name, mod)
}

// Import translates the integer and pointer functions of LLVM module mod into a gMIR module called name. Globals are
// placed at consecutive addresses from GlobalBase. All functions are translated; the errors of every function that
// could not be translated are joined.
func Import(name string, mod llvm.Module) (*gmir.Module, error) {
	m := gmir.CreateModule(name)
	if err := placeGlobals(m, mod); err != nil {
		return nil, err
	}

	var errs []error
	n := 0
	for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
		if fn.IsDeclaration() {
			continue
		}
		if err := importFunction(m, fn); err != nil {
			errs = append(errs, err)
		}
		n++
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	logger.LogParsing(name, n)
	return m, nil
}

// placeGlobals assigns an address to every global variable of mod.
func placeGlobals(m *gmir.Module, mod llvm.Module) error {
	addr := GlobalBase
	for g := mod.FirstGlobal(); !g.IsNil(); g = llvm.NextGlobal(g) {
		size, err := sizeOf(g.Type().ElementType())
		if err != nil {
			return fmt.Errorf("global @%s: %w", g.Name(), err)
		}
		if addr+size > 0x10000 {
			return fmt.Errorf("global @%s does not fit in the address space", g.Name())
		}
		m.SetGlobal(g.Name(), uint16(addr))
		addr += size
	}
	return nil
}

// importFunction translates the LLVM function fn into a new function of m. The entry block of the new function is a
// prologue that reads the parameters and holds the constants PHIs receive, then branches to the first LLVM block.
func importFunction(m *gmir.Module, fn llvm.Value) error {
	sig := fn.Type().ElementType()
	params := make([]types.LLT, 0, len(fn.Params()))
	for _, e1 := range fn.Params() {
		t, err := typeOf(e1.Type())
		if err != nil {
			return fmt.Errorf("function @%s, parameter %d: %w", fn.Name(), len(params), err)
		}
		params = append(params, t)
	}
	var results []types.LLT
	if ret := sig.ReturnType(); ret.TypeKind() != llvm.VoidTypeKind {
		t, err := typeOf(ret)
		if err != nil {
			return fmt.Errorf("function @%s, result: %w", fn.Name(), err)
		}
		results = append(results, t)
	}

	f, err := m.CreateFunction(fn.Name(), params, results)
	if err != nil {
		return err
	}
	if sig.IsFunctionVarArg() {
		f.Frame().VarArgsSlot = f.CreateStackSlot(VarArgsSaveSize)
	}

	entry := f.CreateBlock()
	tr := translator{
		fn:     fn,
		f:      f,
		bd:     gmir.NewBuilder(f),
		pro:    gmir.NewBuilder(f),
		vals:   make(map[llvm.Value]*gmir.Register, mapSize),
		blocks: make(map[llvm.BasicBlock]*gmir.Block, len(fn.BasicBlocks())),
	}
	for i1, e1 := range fn.Params() {
		tr.vals[e1] = tr.pro.BuildArg(params[i1], i1, gmir.ArgWhole)
	}
	bbs := fn.BasicBlocks()
	for _, e1 := range bbs {
		tr.blocks[e1] = f.CreateBlock()
	}
	tr.pro.BuildBr(tr.blocks[bbs[0]])
	tr.pro.SetInsertBeforeTerminator(entry)

	for _, e1 := range bbs {
		tr.cur = tr.blocks[e1]
		tr.bd.SetInsertAtEnd(tr.cur)
		for inst := e1.FirstInstruction(); !inst.IsNil(); inst = llvm.NextInstruction(inst) {
			if err := tr.instr(inst); err != nil {
				return fmt.Errorf("function @%s, %s: %w", fn.Name(), tr.cur.Name(), err)
			}
		}
	}
	return nil
}

// reg returns the register holding the result of LLVM instruction v, creating it on first reference.
func (tr *translator) reg(v llvm.Value) (*gmir.Register, error) {
	if r, ok := tr.vals[v]; ok {
		return r, nil
	}
	t, err := typeOf(v.Type())
	if err != nil {
		return nil, err
	}
	r := tr.f.NewRegister(t)
	tr.vals[v] = r
	return r, nil
}

// operand returns a register holding LLVM value v. Constants and globals are materialised with Builder bd.
func (tr *translator) operand(bd *gmir.Builder, v llvm.Value) (*gmir.Register, error) {
	if r, ok := tr.vals[v]; ok {
		return r, nil
	}
	if !v.IsAInstruction().IsNil() {
		return tr.reg(v)
	}
	t, err := typeOf(v.Type())
	if err != nil {
		return nil, err
	}

	switch {
	case v.IsUndef():
		return bd.BuildUndef(t), nil
	case !v.IsAConstantInt().IsNil():
		return bd.BuildConstant(t, v.SExtValue()), nil
	case !v.IsAConstantPointerNull().IsNil():
		return bd.BuildConstant(t, 0), nil
	case !v.IsAConstantFP().IsNil():
		return buildFConstant(bd, t, v), nil
	case !v.IsAGlobalVariable().IsNil():
		return bd.BuildGlobal(v.Name(), 0), nil
	case !v.IsAConstantExpr().IsNil():
		return tr.constExpr(bd, v)
	case !v.IsAFunction().IsNil():
		return nil, fmt.Errorf("function @%s used as a value, indirect calls are not supported", v.Name())
	}
	return nil, errors.New("unsupported constant operand")
}

// constExpr materialises the constant expression v.
func (tr *translator) constExpr(bd *gmir.Builder, v llvm.Value) (*gmir.Register, error) {
	switch v.Opcode() {
	case llvm.BitCast:
		return tr.operand(bd, v.Operand(0))
	case llvm.IntToPtr:
		if c := v.Operand(0); !c.IsAConstantInt().IsNil() {
			return bd.BuildConstant(types.P, c.SExtValue()), nil
		}
	case llvm.GetElementPtr:
		base := v.Operand(0)
		if base.IsAGlobalVariable().IsNil() {
			break
		}
		off, terms, err := gepTerms(base, operands(v)[1:])
		if err != nil {
			return nil, err
		}
		if len(terms) == 0 {
			return bd.BuildGlobal(base.Name(), off), nil
		}
	}
	return nil, errors.New("unsupported constant expression")
}

// operands returns the operands of LLVM value v.
func operands(v llvm.Value) []llvm.Value {
	n := v.OperandsCount()
	res := make([]llvm.Value, n)
	for i1 := 0; i1 < n; i1++ {
		res[i1] = v.Operand(i1)
	}
	return res
}
