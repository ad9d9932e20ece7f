// Package mos describes the 8-bit 6502 family target as seen by the instruction selector: its CPU variants, the
// physical registers legalized code may name and the operation vocabulary the selector accepts.
package mos

import (
	"fmt"
	"strings"

	"moslegal/src/ir/gmir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// CPU identifies a member of the 6502 family.
type CPU int

// Register is a physical register of the target.
type Register struct {
	name  string // Assembler name of the register.
	bytes int    // Width of the register in bytes.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	MOS6502 CPU = iota
	MOS6502X
	MOS65C02
	MOSR65C02
	MOSW65C02
	MOSW65816
	MOSW65EL02
	MOSW65CE02
	MOSSweet16
)

// -------------------
// ----- Globals -----
// -------------------

// cTyp provides the canonical names of the CPUs.
var cTyp = [...]string{
	"mos6502",
	"mos6502x",
	"mos65c02",
	"mosr65c02",
	"mosw65c02",
	"mosw65816",
	"mosw65el02",
	"mosw65ce02",
	"mossweet16",
}

// aliases maps the short names accepted on the command line to canonical CPU names.
var aliases = map[string]string{
	"6502":    "mos6502",
	"6502x":   "mos6502x",
	"65c02":   "mos65c02",
	"r65c02":  "mosr65c02",
	"w65c02":  "mosw65c02",
	"w65816":  "mosw65816",
	"w65el02": "mosw65el02",
	"w65ce02": "mosw65ce02",
	"sweet16": "mossweet16",
}

// Physical registers.
var (
	A   = Register{name: "A", bytes: 1}          // Accumulator.
	X   = Register{name: "X", bytes: 1}          // Index register X.
	Y   = Register{name: "Y", bytes: 1}          // Index register Y.
	P   = Register{name: "P", bytes: 1}          // Processor status: carry, zero, interrupt, decimal, overflow, sign.
	RS0 = Register{name: gmir.PhysRS0, bytes: 2} // Zero page register pair holding the soft stack pointer.
)

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the canonical name of CPU c.
func (c CPU) String() string {
	if c < 0 || int(c) >= len(cTyp) {
		return fmt.Sprintf("cpu%d", int(c))
	}
	return cTyp[c]
}

// ParseCPU returns the CPU named s. Both canonical names and the short aliases are accepted, case insensitive.
func ParseCPU(s string) (CPU, error) {
	s = strings.ToLower(s)
	if canon, ok := aliases[s]; ok {
		s = canon
	}
	for i1, e1 := range cTyp {
		if e1 == s {
			return CPU(i1), nil
		}
	}
	return MOS6502, fmt.Errorf("unknown CPU %q", s)
}

// CPUs returns the canonical names of all supported CPUs.
func CPUs() []string {
	return cTyp[:]
}

// PhysRegister returns the physical register with the given assembler name, case insensitive.
func PhysRegister(name string) (Register, bool) {
	for _, e1 := range []Register{A, X, Y, P, RS0} {
		if strings.EqualFold(e1.name, name) {
			return e1, true
		}
	}
	return Register{}, false
}

// String returns the assembler name of Register r.
func (r Register) String() string {
	return r.name
}

// Bytes returns the width of Register r in bytes.
func (r Register) Bytes() int {
	return r.bytes
}
