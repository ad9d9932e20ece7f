// Package legalize rewrites generic gMIR operations whose types the 6502 family cannot compute directly into
// sequences of 8-bit operations with explicit carry and borrow flags.
//
// A function is legalized by a work-list: every instruction is looked up in the rule Table and widened, narrowed,
// replaced with a runtime helper call, expanded or handed to a transformation routine. Instructions created on the
// way are queued again. The work-list is repeated until a complete pass changes nothing, after which every
// remaining instruction is accepted by the instruction selector.
package legalize

import (
	"errors"
	"fmt"
	"log/slog"

	"moslegal/src/backend/mos"
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
	"moslegal/src/logger"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Stats counts the work done by a Legalizer.
type Stats struct {
	Iterations int // Passes over the function, including the final pass without change.
	Steps      int // Instructions looked up in the rule table.
	Created    int // Instructions created.
	Erased     int // Instructions erased.
}

// Legalizer legalizes a single function. It is not safe for concurrent use; separate functions may be legalized
// concurrently by separate Legalizers sharing one Table.
type Legalizer struct {
	table   *Table         // Rule table.
	f       *gmir.Function // Function being legalized.
	bd      *gmir.Builder  // Builder of replacement instructions.
	insts   []*gmir.Instr  // Work-list of ordinary instructions.
	arts    []*gmir.Instr  // Work-list of merge and unmerge artifacts.
	created int            // Instructions created by the current step.
	log     *slog.Logger   // Debug log.
	stats   Stats          // Work done.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	maxIterations = 32      // Passes before giving up on reaching a fixed point.
	maxSteps      = 1 << 22 // Rule table lookups before giving up on reaching a fixed point.
)

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Legalizer for Function f using the default rule table.
func New(f *gmir.Function) *Legalizer {
	return NewWithTable(DefaultTable(), f)
}

// NewWithTable returns a Legalizer for Function f using rule Table t.
func NewWithTable(t *Table, f *gmir.Function) *Legalizer {
	l := &Legalizer{
		table: t,
		f:     f,
		bd:    gmir.NewBuilder(f),
		log:   logger.With("function", f.Name()),
	}
	l.bd.SetObserver(func(inst *gmir.Instr) {
		l.created++
		l.stats.Created++
		l.push(inst)
	})
	return l
}

// Legalize legalizes Function f with the default rule table.
func Legalize(f *gmir.Function) error {
	_, err := New(f).Run()
	return err
}

// Run legalizes the function until a fixed point is reached and checks the result against the selector
// vocabulary. Routine assertion failures are returned as errors.
func (l *Legalizer) Run() (stats Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function @%s: legalizer assertion failed: %v", l.f.Name(), r)
		}
		stats = l.stats
	}()

	for {
		l.stats.Iterations++
		if l.stats.Iterations > maxIterations {
			return l.stats, &ConfigError{Function: l.f.Name(),
				Msg: fmt.Sprintf("no fixed point after %d iterations", maxIterations)}
		}
		changed, err := l.pass()
		if err != nil {
			return l.stats, err
		}
		if !changed {
			break
		}
	}
	if err := mos.Check(l.f); err != nil {
		var ie *mos.IllegalError
		if errors.As(err, &ie) {
			return l.stats, configError(l.f, ie.Instrs[0], "outside the selector vocabulary", err)
		}
		return l.stats, err
	}
	logger.LogLegalized(l.f.Name(), l.stats.Iterations, l.stats.Steps, l.f.Len())
	return l.stats, nil
}

// pass runs the work-list once over every instruction of the function. It returns true if anything changed.
func (l *Legalizer) pass() (bool, error) {
	l.insts, l.arts = l.insts[:0], l.arts[:0]
	for _, e1 := range l.f.Instrs() {
		l.push(e1)
	}

	changed := false
	for len(l.insts) > 0 || len(l.arts) > 0 {
		var inst *gmir.Instr
		if n := len(l.insts); n > 0 {
			inst, l.insts = l.insts[n-1], l.insts[:n-1]
		} else {
			n = len(l.arts)
			inst, l.arts = l.arts[n-1], l.arts[:n-1]
		}
		if inst.IsErased() {
			continue
		}
		l.stats.Steps++
		if l.stats.Steps > maxSteps {
			return false, configError(l.f, inst, fmt.Sprintf("no fixed point after %d steps", maxSteps), nil)
		}
		c, err := l.step(inst)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

// step legalizes a single instruction. It returns true if the function changed.
func (l *Legalizer) step(inst *gmir.Instr) (bool, error) {
	if inst.IsDead() {
		l.erase(inst)
		return true, nil
	}
	if isArtifact(inst) && l.combine(inst) {
		return true, nil
	}

	q := queryOf(inst)
	s := l.table.Action(q)
	if s.Action == Legal {
		return false, nil
	}
	l.log.Debug("Rule applied", "instr", inst.String(), "action", s.String())

	l.created = 0
	var erase bool
	var err error
	switch s.Action {
	case WidenScalar:
		erase, err = l.widenScalar(inst, s.TypeIdx, s.Type)
	case NarrowScalar:
		erase, err = l.narrowScalar(inst, s.TypeIdx, s.Type)
	case Libcall:
		erase, err = l.libcall(inst)
	case Lower:
		erase, err = l.lower(inst)
	case Custom:
		r, ok := routines[inst.Opcode()]
		if !ok {
			return false, configError(l.f, inst, "no transformation routine", nil)
		}
		erase, err = r(l, inst)
	case Unsupported:
		return false, &UnsupportedError{Function: l.f.Name(), Op: q.Op, Types: q.Types}
	default:
		return false, configError(l.f, inst, "no rule", nil)
	}
	if err != nil {
		return false, err
	}
	if erase {
		l.erase(inst)
	}
	return erase || l.created > 0, nil
}

// push queues Instr inst.
func (l *Legalizer) push(inst *gmir.Instr) {
	if isArtifact(inst) {
		l.arts = append(l.arts, inst)
	} else {
		l.insts = append(l.insts, inst)
	}
}

// erase removes Instr inst and queues the definitions of its operands that became dead.
func (l *Legalizer) erase(inst *gmir.Instr) {
	uses := append([]*gmir.Register(nil), inst.Uses()...)
	inst.Erase()
	l.stats.Erased++
	for _, e1 := range uses {
		if d := e1.Def(); d != nil && d.IsDead() {
			l.push(d)
		}
	}
}

// replace makes every reader of old read r instead.
func (l *Legalizer) replace(old, r *gmir.Register) {
	if old.Type() != r.Type() {
		panic(fmt.Sprintf("replacing %s:%s with %s:%s", old, old.Type(), r, r.Type()))
	}
	l.f.ReplaceAllUses(old, r)
}

// expect panics unless Register r has type t.
func expect(inst *gmir.Instr, r *gmir.Register, t types.LLT) {
	if r.Type() != t {
		panic(fmt.Sprintf("%s: expected %s operand, got %s", inst, t, r.Type()))
	}
}
