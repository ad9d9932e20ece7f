// Package driver runs the legalizer over a source file the way the command line tool does: read, parse, verify,
// legalize and write the result.
package driver

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"moslegal/src/backend/mos"
	"moslegal/src/frontend"
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/llvm"
	"moslegal/src/legalize"
	"moslegal/src/logger"
	"moslegal/src/util"
)

// ---------------------
// ----- Constants -----
// ---------------------

// headerPrefix starts the comment line naming the target of a legalized dump.
const headerPrefix = "; target "

// -------------------
// ----- Globals -----
// -------------------

// ErrIllegal is returned by a check run when the source holds instructions the selector does not accept.
var ErrIllegal = errors.New("instructions outside the selector vocabulary")

// ---------------------
// ----- Functions -----
// ---------------------

// Run executes one invocation of the legalizer as configured by opt.
func Run(opt util.Options) error {
	start := time.Now()

	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		ts, err := frontend.TokenStream(src)
		if err != nil {
			return fmt.Errorf("syntax error: %w", err)
		}
		return util.WriteOutput(opt, ts)
	}

	m, err := Load(opt, src)
	if err != nil {
		logger.LogError("parse", opt.Src, err.Error())
		return err
	}

	if opt.Check {
		report, n := Check(m)
		if err := util.WriteOutput(opt, report); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%d %w", n, ErrIllegal)
		}
		return nil
	}

	logger.LogPhase("legalize")
	t := time.Now()
	if err := legalize.LegalizeModule(opt, m); err != nil {
		logger.LogError("legalize", opt.Src, err.Error())
		logger.LogCompilerComplete(false, time.Since(start).String())
		return err
	}
	logger.LogPhaseComplete("legalize", time.Since(t).String())

	if err := util.WriteOutput(opt, Header(opt.CPU)+m.String()); err != nil {
		return err
	}
	logger.LogCompilerComplete(true, time.Since(start).String())
	return nil
}

// Load parses src as gMIR text, or as LLVM IR if opt.LLVM is set, and verifies the resulting module.
func Load(opt util.Options, src string) (*gmir.Module, error) {
	name := moduleName(opt.Src)
	logger.LogPhase("parse")
	t := time.Now()

	var m *gmir.Module
	var err error
	if opt.LLVM {
		m, err = llvm.ImportSource(name, src)
	} else {
		m, err = frontend.Parse(name, src)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := gmir.Verify(m); err != nil {
		return nil, fmt.Errorf("malformed input: %w", err)
	}
	logger.LogPhaseComplete("parse", time.Since(t).String())
	return m, nil
}

// Check lists the instructions of Module m the selector does not accept, one per line, and returns the list with
// the number of instructions in it.
func Check(m *gmir.Module) (string, int) {
	sb := strings.Builder{}
	n := 0
	for _, e1 := range m.Functions() {
		for _, e2 := range mos.Illegal(e1) {
			sb.WriteString(fmt.Sprintf("@%s, %s: %s\n", e1.Name(), e2.Block().Name(), e2))
			n++
		}
	}
	return sb.String(), n
}

// Header returns the comment line that opens the dump of a module legalized for cpu.
func Header(cpu mos.CPU) string {
	return headerPrefix + cpu.String() + "\n"
}

// moduleName derives a module name from the source path.
func moduleName(path string) string {
	if len(path) == 0 {
		return "stdin"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
