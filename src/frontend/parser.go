// parser.go provides a recursive descent parser for textual gMIR. The scanner runs concurrently to the parser which
// lets one goroutine scan the source for lexemes while the other builds the module.

package frontend

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// parser builds a gMIR module from the token stream of a lexer.
type parser struct {
	l      *lexer         // Token source.
	tok    item           // Current token.
	ahead  []item         // Tokens read past the current one.
	m      *gmir.Module   // Module being built.
	f      *gmir.Function // Function being built.
	bd     *gmir.Builder  // Builder of the current function.
	placed map[int]bool   // Blocks of the current function whose label has been seen.
}

// operand is a single parsed instruction operand.
type operand struct {
	typ   itemType       // Token type of the operand.
	reg   *gmir.Register // Register operand.
	num   int64          // Number, frame index or symbol offset.
	sym   string         // Symbol, predicate or physical register name.
	block *gmir.Block    // Block label operand.
}

// SyntaxError reports malformed gMIR text.
type SyntaxError struct {
	Line int    // Line of the offending token.
	Pos  int    // Position of the offending token on its line.
	Msg  string // Description of the problem.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d:%d: %s", e.Line, e.Pos, e.Msg)
}

// Parse parses textual gMIR into a module.
func Parse(name, src string) (m *gmir.Module, err error) {
	l := newLexer(src, lexGlobal)

	// Start scanner and run it concurrently to the parser.
	go l.run()
	defer l.stop()

	p := &parser{l: l, m: gmir.CreateModule(name)}
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SyntaxError)
			if !ok {
				panic(r)
			}
			m, err = nil, se
		}
	}()
	p.advance()
	p.parseModule()
	return p.m, nil
}

// TokenStream returns a table of the tokens scanned from the given source string.
func TokenStream(src string) (string, error) {
	l := newLexer(src, lexGlobal)
	go l.run()
	defer l.stop()

	sb := strings.Builder{}
	tw := tabwriter.NewWriter(&sb, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for {
		t := l.nextItem()
		switch t.typ {
		case itemEOF:
			err := tw.Flush()
			return sb.String(), err
		case itemError:
			_ = tw.Flush()
			return sb.String(), fmt.Errorf("%s", t.val)
		default:
			if len(t.val) > 20 {
				_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			} else {
				_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			}
		}
	}
}

// errorf aborts parsing with a syntax error at the current token.
func (p *parser) errorf(format string, args ...interface{}) {
	panic(&SyntaxError{Line: p.tok.line, Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)})
}

// advance moves to the next token.
func (p *parser) advance() {
	if len(p.ahead) > 0 {
		p.tok, p.ahead = p.ahead[0], p.ahead[1:]
	} else {
		p.tok = p.l.nextItem()
	}
	if p.tok.typ == itemError {
		p.errorf("%s", p.tok.val)
	}
}

// lookahead returns the token after the current one without consuming anything.
func (p *parser) lookahead() item {
	if len(p.ahead) == 0 {
		p.ahead = append(p.ahead, p.l.nextItem())
	}
	return p.ahead[0]
}

// expect consumes a token of type typ and returns it.
func (p *parser) expect(typ itemType) item {
	if p.tok.typ != typ {
		p.errorf("expected %s, got %s", typ, p.tok)
	}
	t := p.tok
	p.advance()
	return t
}

// accept consumes the current token if it's of type typ.
func (p *parser) accept(typ itemType) bool {
	if p.tok.typ != typ {
		return false
	}
	p.advance()
	return true
}

// number parses the lexeme of a number token.
func (p *parser) number(t item) int64 {
	s, neg := t.val, false
	if strings.HasPrefix(s, "-") {
		s, neg = s[1:], true
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		p.errorf("invalid number %q", t.val)
	}
	if neg {
		return -int64(v)
	}
	return int64(v)
}

// suffix parses the decimal number after prefix in the lexeme of t.
func (p *parser) suffix(t item, prefix string) int {
	v, err := strconv.Atoi(strings.TrimPrefix(t.val, prefix))
	if err != nil {
		p.errorf("invalid %s", t)
	}
	return v
}

// parseType parses a low-level type.
func (p *parser) parseType() types.LLT {
	t := p.expect(itemIdent)
	res, err := types.ParseLLT(t.val)
	if err != nil {
		p.tok = t
		p.errorf("%s", err)
	}
	return res
}

// parseModule parses globals and functions until the end of input.
func (p *parser) parseModule() {
	for p.tok.typ != itemEOF {
		switch p.tok.typ {
		case itemGlobal:
			p.parseGlobal()
		case itemFunc:
			p.parseFunction()
		default:
			p.errorf("expected global or func, got %s", p.tok)
		}
	}
}

// parseGlobal parses: global @name = address
func (p *parser) parseGlobal() {
	p.expect(itemGlobal)
	name := strings.TrimPrefix(p.expect(itemSymbol).val, "@")
	p.expect('=')
	addr := p.number(p.expect(itemNumber))
	if addr < 0 || addr > 0xffff {
		p.errorf("address 0x%x of @%s is outside the address space", addr, name)
	}
	p.m.SetGlobal(name, uint16(addr))
}

// parseFunction parses a function header, its frame slots and its blocks.
func (p *parser) parseFunction() {
	p.expect(itemFunc)
	name := strings.TrimPrefix(p.expect(itemSymbol).val, "@")
	p.expect('(')
	params := make([]types.LLT, 0, 4)
	for p.tok.typ != ')' {
		if len(params) > 0 {
			p.expect(',')
		}
		params = append(params, p.parseType())
	}
	p.expect(')')
	results := make([]types.LLT, 0, 1)
	if p.accept(itemArrow) {
		if p.accept('(') {
			for p.tok.typ != ')' {
				if len(results) > 0 {
					p.expect(',')
				}
				results = append(results, p.parseType())
			}
			p.expect(')')
		} else {
			results = append(results, p.parseType())
		}
	}

	f, err := p.m.CreateFunction(name, params, results)
	if err != nil {
		p.errorf("%s", err)
	}
	p.f, p.bd, p.placed = f, gmir.NewBuilder(f), make(map[int]bool, 8)
	p.expect('{')

	for p.tok.typ == itemStack {
		slot := p.suffix(p.expect(itemStack), "%stack.")
		if slot != len(f.Frame().Slots) {
			p.errorf("frame slot %d declared out of order", slot)
		}
		p.expect(itemSize)
		f.CreateStackSlot(int(p.number(p.expect(itemNumber))))
		if p.accept(itemVararg) {
			f.Frame().VarArgsSlot = slot
		}
	}

	for p.tok.typ == itemLabel {
		p.parseBlock()
	}
	p.expect('}')
	for _, e1 := range f.Blocks() {
		if !p.placed[e1.Id()] {
			p.errorf("function @%s references %s which is never defined", name, e1.Name())
		}
	}
}

// block returns the block with the given id, creating it on first reference.
func (p *parser) block(id int) *gmir.Block {
	if b := p.f.Block(id); b != nil {
		return b
	}
	return p.f.CreateBlockWithId(id)
}

// parseBlock parses a block label and the instructions that follow it.
func (p *parser) parseBlock() {
	id := p.suffix(p.expect(itemLabel), "bb.")
	if p.placed[id] {
		p.errorf("block bb.%d is defined twice", id)
	}
	p.placed[id] = true
	b := p.block(id)
	b.MoveToEnd()
	p.expect(':')
	p.bd.SetInsertAtEnd(b)
	for p.tok.typ == itemRegister || p.tok.typ == itemIdent {
		p.parseInstr()
	}
}

// parseInstr parses: [%d:type {, %d:type} =] OPCODE [pred] [operand {, operand}]
func (p *parser) parseInstr() {
	defs := make([]*gmir.Register, 0, 2)
	if p.tok.typ == itemRegister {
		for {
			id := p.suffix(p.expect(itemRegister), "%")
			p.expect(':')
			t := p.parseType()
			r := p.f.RegisterWithId(id, t)
			if r.Type() != t {
				p.errorf("%s defined as %s but used as %s", r, t, r.Type())
			}
			defs = append(defs, r)
			if !p.accept(',') {
				break
			}
		}
		p.expect('=')
	}
	opTok := p.expect(itemIdent)
	op, ok := types.LookupOpcode(opTok.val)
	if !ok {
		p.tok = opTok
		p.errorf("unknown opcode %q", opTok.val)
	}

	var ops []operand
	if p.startsOperand() {
		ops = append(ops, p.parseOperand())
		for {
			// A predicate is separated from the operand after it by a space only.
			pred := ops[len(ops)-1].typ == itemIdent && p.startsOperand()
			if !pred && !p.accept(',') {
				break
			}
			ops = append(ops, p.parseOperand())
		}
	}
	p.build(op, defs, ops)
}

// startsOperand returns true if the current token can start an operand.
func (p *parser) startsOperand() bool {
	switch p.tok.typ {
	case itemRegister:
		// A register followed by a type starts the next instruction.
		return p.lookahead().typ != ':'
	case itemStack, itemSymbol, itemNumber, itemImplicit, itemImplicitDef:
		return true
	case itemIdent:
		_, ok := types.LookupPredicate(p.tok.val)
		return ok
	case itemLabel:
		// A label followed by a colon starts the next block.
		return p.lookahead().typ != ':'
	}
	return false
}

// parseOperand parses a single instruction operand.
func (p *parser) parseOperand() operand {
	t := p.tok
	switch t.typ {
	case itemRegister:
		p.advance()
		return operand{typ: t.typ, reg: p.f.RegisterWithId(p.suffix(t, "%"), types.LLT{})}
	case itemStack:
		p.advance()
		return operand{typ: t.typ, num: int64(p.suffix(t, "%stack."))}
	case itemSymbol:
		p.advance()
		o := operand{typ: t.typ, sym: strings.TrimPrefix(t.val, "@")}
		if p.accept('+') {
			o.num = p.number(p.expect(itemNumber))
		} else if p.tok.typ == itemNumber && strings.HasPrefix(p.tok.val, "-") {
			o.num = p.number(p.expect(itemNumber))
		}
		return o
	case itemNumber:
		p.advance()
		return operand{typ: t.typ, num: p.number(t)}
	case itemLabel:
		p.advance()
		return operand{typ: t.typ, block: p.block(p.suffix(t, "bb."))}
	case itemImplicit, itemImplicitDef:
		p.advance()
		phys := p.expect(itemPhys)
		typ := itemPhys
		if t.typ == itemImplicitDef {
			typ = itemImplicitDef
		}
		return operand{typ: typ, sym: strings.TrimPrefix(phys.val, "$")}
	case itemIdent:
		p.advance()
		return operand{typ: t.typ, sym: t.val}
	}
	p.errorf("unexpected %s", t)
	return operand{}
}

// build creates the instruction from its parsed parts.
func (p *parser) build(op types.Opcode, defs []*gmir.Register, ops []operand) {
	var uses []*gmir.Register
	var nums []int64
	o := gmir.Operands{Part: gmir.ArgWhole}
	for _, e1 := range ops {
		switch e1.typ {
		case itemRegister:
			uses = append(uses, e1.reg)
		case itemStack:
			nums = append(nums, e1.num)
		case itemSymbol:
			o.Sym, o.Imm = e1.sym, e1.num
		case itemNumber:
			nums = append(nums, e1.num)
		case itemLabel:
			o.Targets = append(o.Targets, e1.block)
		case itemPhys:
			o.Implicit = append(o.Implicit, e1.sym)
		case itemImplicitDef:
			o.ImplicitDefs = append(o.ImplicitDefs, e1.sym)
		case itemIdent:
			pred, _ := types.LookupPredicate(e1.sym)
			o.Pred = pred
		}
	}

	want := 0
	switch op {
	case types.Constant:
		if len(nums) != 1 || len(defs) != 1 {
			p.errorf("%s needs one def and one immediate", op)
		}
		p.bd.BuildConstantTo(defs[0], nums[0])
		return
	case types.FrameIndex, types.BrCondImm, types.DynStackAlloc, types.FConstant, types.SExtInReg, types.Extract,
		types.Insert, types.SExtLoad, types.ZExtLoad:
		want = 1
	case types.Arg:
		if len(nums) == 2 {
			o.Part = int(nums[1])
			nums = nums[:1]
		}
		want = 1
	}
	if len(nums) != want {
		p.errorf("%s takes %d immediates, got %d", op, want, len(nums))
	}
	if want == 1 {
		o.Imm = nums[0]
	}
	if op == types.Phi && len(o.Targets) != len(uses) {
		p.errorf("G_PHI needs a block for every incoming value")
	}
	p.bd.BuildWith(op, defs, uses, o)
}
