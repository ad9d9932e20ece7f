package gmir

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Module defines a program that contains globals and functions.
type Module struct {
	Name       string            // Name of module. Not important.
	functions  []*Function       // Functions in definition order.
	globals    map[string]uint16 // Addresses of global symbols.
	sync.Mutex                   // Mutex for synchronising access to the module during parallel execution.
}

// ---------------------
// ----- Constants -----
// ---------------------

// labelStackPrefix is the textual prefix of frame indices.
const labelStackPrefix = "%stack."

// -------------------
// ----- Globals -----
// -------------------

// ---------------------
// ----- Functions -----
// ---------------------

// CreateModule creates a new empty module with the given optional name.
func CreateModule(name string) *Module {
	m := Module{
		functions: make([]*Function, 0, 16),
		globals:   make(map[string]uint16, 16),
	}
	if len(name) > 0 {
		m.Name = name
	} else {
		m.Name = "gMIR Module"
	}
	return &m
}

// CreateFunction creates a new empty function with the given parameter and result types.
func (m *Module) CreateFunction(name string, params, results []types.LLT) (*Function, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf("cannot create function without a name")
	}
	if m.Function(name) != nil {
		return nil, fmt.Errorf("function @%s is already defined", name)
	}
	return m.newFunction(name, params, results), nil
}

// newFunction adds an empty function to Module m without checking its name.
func (m *Module) newFunction(name string, params, results []types.LLT) *Function {
	m.Lock()
	defer m.Unlock()
	f := &Function{
		m:       m,
		name:    name,
		params:  params,
		results: results,
		frame:   FrameInfo{VarArgsSlot: NoSlot},
		blocks:  make([]*Block, 0, 8),
		regs:    make(map[int]*Register, 64),
	}
	m.functions = append(m.functions, f)
	return f
}

// Functions returns the functions of Module m in definition order.
func (m *Module) Functions() []*Function {
	return m.functions
}

// Function returns the named function of Module m, or nil if there is no such function.
func (m *Module) Function(name string) *Function {
	for _, e1 := range m.functions {
		if e1.name == name {
			return e1
		}
	}
	return nil
}

// SetGlobal binds global symbol name to address addr.
func (m *Module) SetGlobal(name string, addr uint16) {
	m.Lock()
	defer m.Unlock()
	m.globals[name] = addr
}

// Global returns the address bound to global symbol name.
func (m *Module) Global(name string) (uint16, bool) {
	addr, ok := m.globals[name]
	return addr, ok
}

// Globals returns the names of all global symbols of Module m in lexical order.
func (m *Module) Globals() []string {
	res := make([]string, 0, len(m.globals))
	for k := range m.globals {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// String returns a textual representation of the module.
func (m *Module) String() string {
	sb := strings.Builder{}
	for _, e1 := range m.Globals() {
		sb.WriteString(fmt.Sprintf("global @%s = 0x%04x\n", e1, m.globals[e1]))
	}
	if len(m.globals) > 0 {
		sb.WriteRune('\n')
	}
	for i1, e1 := range m.functions {
		if i1 > 0 {
			sb.WriteRune('\n')
		}
		sb.WriteString(e1.String())
	}
	return sb.String()
}

// Clone returns a deep copy of Module m.
func (m *Module) Clone() *Module {
	res := CreateModule(m.Name)
	for k, v := range m.globals {
		res.globals[k] = v
	}
	for _, e1 := range m.functions {
		e1.Clone(res)
	}
	return res
}
