// Package sim provides a reference interpreter for gMIR. It runs functions both before and after legalization over a
// flat 64 KiB memory, so the two forms of a function can be compared for identical behaviour.
package sim

import (
	"errors"
	"fmt"
	"math/bits"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Machine holds the memory and stack pointer state shared by all activations.
type Machine struct {
	m         *gmir.Module  // Module whose functions and globals are executed.
	Mem       [1 << 16]byte // Flat memory.
	SP        uint16        // Soft stack pointer.
	FrameBase uint16        // Address of the first fixed frame slot of the outermost activation.
	SPWrites  []SPWrite     // Every write to one half of the stack pointer, in order.
	MaxSteps  int           // Instruction budget per Run, 0 for the default.
	frameTop  uint16        // Next free address of the fixed frame area.
	steps     int           // Instructions executed in the current Run.
	depth     int           // Current call depth.
}

// SPWrite records a single write to one half of the stack pointer.
type SPWrite struct {
	High  bool // True for the high byte.
	Value byte // Byte written.
}

// activation holds the state of a single function invocation.
type activation struct {
	f     *gmir.Function            // Executing function.
	vals  map[*gmir.Register]uint64 // Register values.
	args  [][]byte                  // Argument bytes, one slice per parameter.
	slots []uint16                  // Addresses of the fixed frame slots.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	DefaultSP        = 0x1f40 // DefaultSP is the initial soft stack pointer.
	DefaultFrameBase = 0x0400 // DefaultFrameBase is the start of the fixed frame area.
	defaultMaxSteps  = 1 << 20
	maxDepth         = 256
)

// -------------------
// ----- Globals -----
// -------------------

// ErrUnsupported is returned when a function executes an operation the simulator has no semantics for.
var ErrUnsupported = errors.New("unsupported operation")

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Machine for Module m with the default stack pointer and frame area.
func New(m *gmir.Module) *Machine {
	return &Machine{
		m:         m,
		SP:        DefaultSP,
		FrameBase: DefaultFrameBase,
	}
}

// Run calls the named function with one value per declared parameter and returns one value per declared result.
func (mc *Machine) Run(name string, args ...uint64) ([]uint64, error) {
	return mc.RunVariadic(name, args, nil)
}

// RunVariadic calls the named function like Run and places varargs in its variadic argument save area.
func (mc *Machine) RunVariadic(name string, args []uint64, varargs []byte) ([]uint64, error) {
	f := mc.m.Function(name)
	if f == nil {
		return nil, fmt.Errorf("function @%s is not defined", name)
	}
	if len(args) != len(f.Params()) {
		return nil, fmt.Errorf("function @%s takes %d arguments, got %d", name, len(f.Params()), len(args))
	}
	in := make([]byte, 0, 16)
	for i1, e1 := range f.Params() {
		in = append(in, toBytes(e1, args[i1])...)
	}
	in = append(in, varargs...)

	mc.steps, mc.depth, mc.frameTop = 0, 0, mc.FrameBase
	out, err := mc.call(f, in)
	if err != nil {
		return nil, err
	}
	return fromBytes(f.Results(), out)
}

// Load reads n little endian bytes at addr.
func (mc *Machine) Load(addr uint16, n int) uint64 {
	var v uint64
	for i1 := n - 1; i1 >= 0; i1-- {
		v = v<<8 | uint64(mc.Mem[addr+uint16(i1)])
	}
	return v
}

// Store writes the n low bytes of v at addr, least significant first.
func (mc *Machine) Store(addr uint16, n int, v uint64) {
	for i1 := 0; i1 < n; i1++ {
		mc.Mem[addr+uint16(i1)] = byte(v >> (8 * i1))
	}
}

// call runs f with the flattened argument bytes in and returns the flattened result bytes.
func (mc *Machine) call(f *gmir.Function, in []byte) ([]byte, error) {
	if mc.depth >= maxDepth {
		return nil, fmt.Errorf("function @%s: call depth exceeds %d", f.Name(), maxDepth)
	}
	mc.depth++
	savedTop := mc.frameTop
	defer func() {
		mc.depth--
		mc.frameTop = savedTop
	}()

	act := &activation{
		f:    f,
		vals: make(map[*gmir.Register]uint64, 64),
	}
	for _, e1 := range f.Params() {
		n := e1.SizeInBytes()
		if len(in) < n {
			return nil, fmt.Errorf("function @%s: missing argument bytes", f.Name())
		}
		act.args = append(act.args, in[:n])
		in = in[n:]
	}
	for i1, e1 := range f.Frame().Slots {
		act.slots = append(act.slots, mc.frameTop)
		if i1 == f.Frame().VarArgsSlot {
			for i2 := 0; i2 < e1 && i2 < len(in); i2++ {
				mc.Mem[mc.frameTop+uint16(i2)] = in[i2]
			}
		}
		mc.frameTop += uint16(e1)
	}
	return mc.exec(act)
}

// exec interprets the blocks of an activation until it returns.
func (mc *Machine) exec(act *activation) ([]byte, error) {
	limit := mc.MaxSteps
	if limit == 0 {
		limit = defaultMaxSteps
	}
	var prev *gmir.Block
	b := act.f.Entry()
	for {
		// PHIs read their incoming values simultaneously.
		phis := b.Phis()
		incoming := make([]uint64, len(phis))
		for i1, e1 := range phis {
			r := e1.IncomingFor(prev)
			if r == nil {
				return nil, fmt.Errorf("function @%s, %s: %s has no value for the incoming edge", act.f.Name(),
					b.Name(), e1)
			}
			incoming[i1] = act.vals[r]
		}
		for i1, e1 := range phis {
			act.set(e1.Def(0), incoming[i1])
		}

		next := (*gmir.Block)(nil)
		for _, e1 := range b.Instrs()[len(phis):] {
			mc.steps++
			if mc.steps > limit {
				return nil, fmt.Errorf("function @%s: step limit of %d exceeded", act.f.Name(), limit)
			}
			switch e1.Opcode() {
			case types.Ret:
				out := make([]byte, 0, 8)
				for _, e2 := range e1.Uses() {
					out = append(out, toBytes(e2.Type(), act.get(e2))...)
				}
				return out, nil
			case types.Br:
				next = e1.Targets()[0]
			case types.BrCond:
				next = e1.Targets()[1]
				if act.get(e1.Use(0))&1 != 0 {
					next = e1.Targets()[0]
				}
			case types.BrCondImm:
				next = e1.Targets()[1]
				if act.get(e1.Use(0))&1 == uint64(e1.Imm())&1 {
					next = e1.Targets()[0]
				}
			default:
				if err := mc.step(act, e1); err != nil {
					return nil, fmt.Errorf("function @%s, %s: %s: %w", act.f.Name(), b.Name(), e1, err)
				}
			}
		}
		if next == nil {
			return nil, fmt.Errorf("function @%s, %s: fell off the end of the block", act.f.Name(), b.Name())
		}
		prev, b = b, next
	}
}

// step executes a single non-terminator instruction.
func (mc *Machine) step(act *activation, inst *gmir.Instr) error {
	op := inst.Opcode()
	use := func(i int) uint64 {
		return act.get(inst.Use(i))
	}
	var t types.LLT
	if len(inst.Defs()) > 0 {
		t = inst.Def(0).Type()
	}
	w := t.SizeInBits()
	set := func(i int, v uint64) {
		act.set(inst.Def(i), v)
	}

	switch op {
	case types.Constant:
		set(0, uint64(inst.Imm()))
	case types.ImplicitDef:
		set(0, 0)
	case types.FrameIndex:
		set(0, uint64(act.slots[inst.Imm()]))
	case types.GlobalValue:
		addr, ok := mc.m.Global(inst.Sym())
		if !ok {
			return fmt.Errorf("global @%s has no address", inst.Sym())
		}
		set(0, uint64(addr)+uint64(inst.Imm()))
	case types.Arg:
		arg := act.args[inst.Imm()]
		if inst.Part() == gmir.ArgWhole {
			set(0, fromLE(arg))
		} else {
			set(0, uint64(arg[inst.Part()]))
		}
	case types.Copy, types.AnyExt, types.ZExt, types.Trunc, types.IntToPtr, types.PtrToInt:
		set(0, use(0))
	case types.SExt:
		src := inst.Use(0).Type()
		set(0, uint64(types.SignExtend(use(0), src.SizeInBits())))
	case types.MergeValues:
		var v uint64
		off := 0
		for _, e1 := range inst.Uses() {
			v |= act.get(e1) << uint(off)
			off += e1.Type().SizeInBits()
		}
		set(0, v)
	case types.UnmergeValues:
		v := use(0)
		for _, e1 := range inst.Defs() {
			act.set(e1, v)
			v >>= uint(e1.Type().SizeInBits())
		}
	case types.BSwap:
		b := toBytes(t, use(0))
		for i1, j := 0, len(b)-1; i1 < j; i1, j = i1+1, j-1 {
			b[i1], b[j] = b[j], b[i1]
		}
		set(0, fromLE(b))
	case types.Add:
		set(0, use(0)+use(1))
	case types.Sub:
		set(0, use(0)-use(1))
	case types.And:
		set(0, use(0)&use(1))
	case types.Or:
		set(0, use(0)|use(1))
	case types.Xor:
		set(0, use(0)^use(1))
	case types.Mul:
		set(0, use(0)*use(1))
	case types.SDiv, types.SRem, types.UDiv, types.URem:
		v, err := divide(op, use(0), use(1), w)
		if err != nil {
			return err
		}
		set(0, v)
	case types.SDivRem, types.UDivRem:
		divOp, remOp := types.SDiv, types.SRem
		if op == types.UDivRem {
			divOp, remOp = types.UDiv, types.URem
		}
		q, err := divide(divOp, use(0), use(1), w)
		if err != nil {
			return err
		}
		r, _ := divide(remOp, use(0), use(1), w)
		set(0, q)
		set(1, r)
	case types.Shl, types.LShr, types.AShr:
		set(0, shift(op, use(0), use(1), w))
	case types.RotL, types.RotR:
		n := int(use(1) % uint64(w))
		v := use(0)
		if op == types.RotR {
			n = (w - n) % w
		}
		set(0, v<<uint(n)|v>>uint(w-n))
	case types.Freeze:
		set(0, use(0))
	case types.SExtInReg:
		set(0, uint64(types.SignExtend(use(0), int(inst.Imm()))))
	case types.Extract:
		set(0, use(0)>>uint(inst.Imm()))
	case types.Insert:
		field := inst.Use(1).Type().Mask() << uint(inst.Imm())
		set(0, use(0)&^field|use(1)<<uint(inst.Imm()))
	case types.BitReverse:
		set(0, bits.Reverse64(use(0))>>uint(64-w))
	case types.CtPop, types.CtLZ, types.CtTZ:
		set(0, count(op, use(0), inst.Use(0).Type().SizeInBits()))
	case types.UAddSat, types.SAddSat, types.USubSat, types.SSubSat, types.UShlSat, types.SShlSat:
		set(0, saturate(op, use(0), use(1), w))
	case types.UMulO, types.SMulO:
		res, ov := mulOverflow(op == types.SMulO, use(0), use(1), w)
		set(0, res)
		set(1, boolean(ov))
	case types.UMulH, types.SMulH:
		set(0, mulHigh(op == types.SMulH, use(0), use(1), w))
	case types.FShl, types.FShr:
		set(0, funnel(op, use(0), use(1), use(2), w))
	case types.ICmp:
		a := inst.Use(0).Type()
		set(0, boolean(inst.Pred().Eval(use(0), use(1), a.SizeInBits())))
	case types.Select:
		if use(0)&1 != 0 {
			set(0, use(1))
		} else {
			set(0, use(2))
		}
	case types.PtrAdd:
		off := inst.Use(1)
		set(0, use(0)+uint64(types.SignExtend(use(1), off.Type().SizeInBits())))
	case types.Index:
		set(0, use(0)+use(1))
	case types.SMin, types.SMax, types.UMin, types.UMax:
		a, b := use(0), use(1)
		var pick bool
		switch op {
		case types.SMin:
			pick = types.PredSLT.Eval(a, b, w)
		case types.SMax:
			pick = types.PredSGT.Eval(a, b, w)
		case types.UMin:
			pick = a < b
		default:
			pick = a > b
		}
		if pick {
			set(0, a)
		} else {
			set(0, b)
		}
	case types.Abs:
		v := use(0)
		if types.SignExtend(v, w) < 0 {
			v = -v
		}
		set(0, v)
	case types.UAddO, types.SAddO, types.UAddE, types.SAddE:
		var cin uint64
		if len(inst.Uses()) == 3 {
			cin = use(2) & 1
		}
		res, carry := addCarry(use(0), use(1), cin, w)
		flag := carry
		if op == types.SAddO || op == types.SAddE {
			flag = signedOverflow(use(0), use(1), res, w, false)
		}
		set(0, res)
		set(1, boolean(flag))
	case types.USubO, types.SSubO, types.USubE, types.SSubE:
		var bin uint64
		if len(inst.Uses()) == 3 {
			bin = use(2) & 1
		}
		res, borrow := subBorrow(use(0), use(1), bin, w)
		flag := borrow
		if op == types.SSubO || op == types.SSubE {
			flag = signedOverflow(use(0), use(1), res, w, true)
		}
		set(0, res)
		set(1, boolean(flag))
	case types.Sbc:
		a, b, c := use(0), use(1), use(2)&1
		res, borrow := subBorrow(a, b, 1-c, 8)
		set(0, res)
		set(1, boolean(!borrow))
		set(2, res>>7&1)
		set(3, boolean(signedOverflow(a, b, res, 8, true)))
		set(4, boolean(res&0xff == 0))
	case types.ShlE:
		v, cin := use(0), use(1)&1
		set(0, v<<1|cin)
		set(1, v>>uint(w-1)&1)
	case types.LShrE:
		v, cin := use(0), use(1)&1
		set(0, v>>1|cin<<uint(w-1))
		set(1, v&1)
	case types.Load:
		set(0, mc.Load(uint16(use(0)), t.SizeInBytes()))
	case types.SExtLoad, types.ZExtLoad:
		n := int(inst.Imm())
		v := mc.Load(uint16(use(0)), n)
		if op == types.SExtLoad {
			v = uint64(types.SignExtend(v, 8*n))
		}
		set(0, v)
	case types.Store:
		v := inst.Use(0)
		mc.Store(uint16(use(1)), v.Type().SizeInBytes(), use(0))
	case types.MemCpy, types.MemMove:
		memmove(mc, uint16(use(0)), uint16(use(1)), int(use(2)))
	case types.MemSet:
		memset(mc, uint16(use(0)), byte(use(1)), int(use(2)))
	case types.Call:
		return mc.callInstr(act, inst)
	case types.VAStart:
		slot := act.f.Frame().VarArgsSlot
		if slot == gmir.NoSlot {
			return errors.New("function has no variadic argument save area")
		}
		mc.Store(uint16(use(0)), 2, uint64(act.slots[slot]))
	case types.VAArg:
		cell := uint16(use(0))
		cur := uint16(mc.Load(cell, 2))
		set(0, mc.Load(cur, t.SizeInBytes()))
		mc.Store(cell, 2, uint64(cur)+uint64(t.SizeInBytes()))
	case types.VACopy:
		mc.Store(uint16(use(0)), 2, mc.Load(uint16(use(1)), 2))
	case types.DynStackAlloc:
		sp := uint64(mc.SP) - use(0)
		if align := uint64(inst.Imm()); align > 1 {
			sp &^= align - 1
		}
		mc.SP = uint16(sp)
		set(0, uint64(mc.SP))
	case types.ReadSP:
		set(0, uint64(mc.SP))
	case types.SetSPHi:
		v := byte(use(0))
		mc.SP = mc.SP&0x00ff | uint16(v)<<8
		mc.SPWrites = append(mc.SPWrites, SPWrite{High: true, Value: v})
	case types.SetSPLo:
		v := byte(use(0))
		mc.SP = mc.SP&0xff00 | uint16(v)
		mc.SPWrites = append(mc.SPWrites, SPWrite{High: false, Value: v})
	default:
		return fmt.Errorf("%w %s", ErrUnsupported, op)
	}
	return nil
}

// callInstr executes a G_CALL, either of a function of the module or of a runtime helper.
func (mc *Machine) callInstr(act *activation, inst *gmir.Instr) error {
	in := make([]byte, 0, 8)
	for _, e1 := range inst.Uses() {
		in = append(in, toBytes(e1.Type(), act.get(e1))...)
	}
	var out []byte
	var err error
	if f := mc.m.Function(inst.Sym()); f != nil {
		out, err = mc.call(f, in)
	} else if h, ok := runtime[inst.Sym()]; ok {
		out, err = h(mc, in)
	} else {
		err = fmt.Errorf("call to undefined function @%s", inst.Sym())
	}
	if err != nil {
		return err
	}
	resTypes := make([]types.LLT, len(inst.Defs()))
	for i1, e1 := range inst.Defs() {
		resTypes[i1] = e1.Type()
	}
	res, err := fromBytes(resTypes, out)
	if err != nil {
		return fmt.Errorf("@%s: %w", inst.Sym(), err)
	}
	for i1, e1 := range inst.Defs() {
		act.set(e1, res[i1])
	}
	return nil
}

// get returns the value of register r.
func (act *activation) get(r *gmir.Register) uint64 {
	return act.vals[r]
}

// set assigns v to register r, truncated to the width of r.
func (act *activation) set(r *gmir.Register, v uint64) {
	act.vals[r] = v & mask(r.Type())
}

// mask returns the mask of the bits held by a value of type t.
func mask(t types.LLT) uint64 {
	if t.IsPointer() {
		return 0xffff
	}
	return t.Mask()
}

// boolean converts b to 0 or 1.
func boolean(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// toBytes flattens v of type t into bytes, least significant first.
func toBytes(t types.LLT, v uint64) []byte {
	res := make([]byte, t.SizeInBytes())
	for i1 := range res {
		res[i1] = byte(v >> (8 * i1))
	}
	return res
}

// fromLE assembles little endian bytes into a value.
func fromLE(b []byte) uint64 {
	var v uint64
	for i1 := len(b) - 1; i1 >= 0; i1-- {
		v = v<<8 | uint64(b[i1])
	}
	return v
}

// fromBytes splits flattened bytes into one value per type.
func fromBytes(ts []types.LLT, b []byte) ([]uint64, error) {
	res := make([]uint64, len(ts))
	for i1, e1 := range ts {
		n := e1.SizeInBytes()
		if len(b) < n {
			return nil, fmt.Errorf("expected %d more result bytes, got %d", n, len(b))
		}
		res[i1] = fromLE(b[:n]) & mask(e1)
		b = b[n:]
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%d unexpected result bytes", len(b))
	}
	return res, nil
}

// divide evaluates a division or remainder of width w.
func divide(op types.Opcode, a, b uint64, w int) (uint64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	switch op {
	case types.UDiv:
		return a / b, nil
	case types.URem:
		return a % b, nil
	}
	sa, sb := types.SignExtend(a, w), types.SignExtend(b, w)
	if sb == -1 {
		// Avoid the overflow trap of the most negative value divided by minus one.
		if op == types.SDiv {
			return uint64(-sa), nil
		}
		return 0, nil
	}
	if op == types.SDiv {
		return uint64(sa / sb), nil
	}
	return uint64(sa % sb), nil
}

// shift evaluates a shift of width w. Amounts of w or more shift every bit out.
func shift(op types.Opcode, v, n uint64, w int) uint64 {
	if n >= uint64(w) {
		if op == types.AShr && types.SignExtend(v, w) < 0 {
			return ^uint64(0)
		}
		return 0
	}
	switch op {
	case types.Shl:
		return v << n
	case types.LShr:
		return v >> n
	default:
		return uint64(types.SignExtend(v, w) >> n)
	}
}

// addCarry returns a + b + cin truncated to w bits and the carry out of bit w-1.
func addCarry(a, b, cin uint64, w int) (uint64, bool) {
	if w == 64 {
		res, carry := bits.Add64(a, b, cin)
		return res, carry != 0
	}
	m := uint64(1)<<uint(w) - 1
	sum := (a & m) + (b & m) + cin
	return sum & m, sum > m
}

// subBorrow returns a - b - bin truncated to w bits and the borrow out of bit w-1.
func subBorrow(a, b, bin uint64, w int) (uint64, bool) {
	if w == 64 {
		res, borrow := bits.Sub64(a, b, bin)
		return res, borrow != 0
	}
	m := uint64(1)<<uint(w) - 1
	a, b = a&m, b&m
	return (a - b - bin) & m, a < b+bin
}

// signedOverflow returns true if the signed addition, or subtraction if sub is set, of a and b overflowed into res.
func signedOverflow(a, b, res uint64, w int, sub bool) bool {
	sign := uint64(1) << uint(w-1)
	if sub {
		return (a^b)&(a^res)&sign != 0
	}
	return ^(a^b)&(a^res)&sign != 0
}
