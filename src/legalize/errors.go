package legalize

import (
	"errors"
	"fmt"
	"strings"

	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ConfigError reports an instruction the legalizer has no rule or routine for. It is a defect of the rule table or
// of a transformation routine, never of the input.
type ConfigError struct {
	Function string       // Name of the function being legalized.
	Op       types.Opcode // Offending opcode.
	Types    []types.LLT  // Type shape of the offending instruction.
	Msg      string       // What went wrong.
	Err      error        // Underlying cause, if any.
	instr    *gmir.Instr  // Offending instruction, for diagnostics.
}

// UnsupportedError reports an operation the target has no representation for, such as floating point arithmetic.
type UnsupportedError struct {
	Function string       // Name of the function being legalized.
	Op       types.Opcode // Offending opcode.
	Types    []types.LLT  // Type shape of the offending instruction.
}

// ModuleError collects the errors of the functions of a module legalized in parallel.
type ModuleError struct {
	Errs []error // One error per failed function, in no particular order.
}

// -------------------
// ----- Globals -----
// -------------------

// ErrUnsupported is matched by every *UnsupportedError through errors.Is.
var ErrUnsupported = errors.New("unsupported operation")

// ---------------------
// ----- Functions -----
// ---------------------

// Error implements the error interface.
func (e *ConfigError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("function @%s: legalizer configuration error: %s %s", e.Function, e.Op,
		typeList(e.Types)))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.instr != nil {
		sb.WriteString(fmt.Sprintf(" (%s)", e.instr))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause of e.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("function @%s: %s %s has no representation on the target", e.Function, e.Op,
		typeList(e.Types))
}

// Is makes errors.Is(err, ErrUnsupported) hold for every *UnsupportedError.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%d error(s) during parallel legalization", len(e.Errs)))
	for _, e1 := range e.Errs {
		sb.WriteString("\n\t")
		sb.WriteString(e1.Error())
	}
	return sb.String()
}

// Unwrap returns the collected errors, so errors.Is and errors.As look at every one of them.
func (e *ModuleError) Unwrap() []error {
	return e.Errs
}

// configError returns a *ConfigError describing Instr inst of Function f.
func configError(f *gmir.Function, inst *gmir.Instr, msg string, err error) *ConfigError {
	q := queryOf(inst)
	return &ConfigError{
		Function: f.Name(),
		Op:       inst.Opcode(),
		Types:    q.Types,
		Msg:      msg,
		Err:      err,
		instr:    inst,
	}
}

// typeList formats ts as a bracketed list.
func typeList(ts []types.LLT) string {
	s := make([]string, len(ts))
	for i1, e1 := range ts {
		s[i1] = e1.String()
	}
	return "[" + strings.Join(s, ", ") + "]"
}
