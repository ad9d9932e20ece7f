package sim

import (
	"fmt"

	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// helper is a runtime library routine. It receives the flattened argument bytes and returns the flattened results.
type helper func(mc *Machine, in []byte) ([]byte, error)

// -------------------
// ----- Globals -----
// -------------------

// runtime holds the runtime library routines by symbol name.
var runtime = map[string]helper{
	"memcpy":  memcpyHelper,
	"memmove": memcpyHelper,
	"memset":  memsetHelper,
}

// modes are the libgcc machine mode suffixes of the supported integer widths, by width in bytes.
var modes = map[int]string{
	1: "qi",
	2: "hi",
	4: "si",
	8: "di",
}

func init() {
	for n, mode := range modes {
		w := 8 * n
		for _, e1 := range []struct {
			name string
			op   types.Opcode
		}{
			{"__mul%s3", types.Mul},
			{"__div%s3", types.SDiv},
			{"__udiv%s3", types.UDiv},
			{"__mod%s3", types.SRem},
			{"__umod%s3", types.URem},
		} {
			runtime[fmt.Sprintf(e1.name, mode)] = arithHelper(e1.op, n, w)
		}
		for _, e1 := range []struct {
			name string
			op   types.Opcode
		}{
			{"__ashl%s3", types.Shl},
			{"__lshr%s3", types.LShr},
			{"__ashr%s3", types.AShr},
		} {
			runtime[fmt.Sprintf(e1.name, mode)] = shiftHelper(e1.op, n, w)
		}
	}
}

// ---------------------
// ----- Functions -----
// ---------------------

// arithHelper returns a routine computing op on two n byte operands.
func arithHelper(op types.Opcode, n, w int) helper {
	t := types.Scalar(w)
	return func(mc *Machine, in []byte) ([]byte, error) {
		if len(in) != 2*n {
			return nil, fmt.Errorf("expected %d argument bytes, got %d", 2*n, len(in))
		}
		a, b := fromLE(in[:n]), fromLE(in[n:])
		var v uint64
		if op == types.Mul {
			v = a * b
		} else {
			var err error
			if v, err = divide(op, a, b, w); err != nil {
				return nil, err
			}
		}
		return toBytes(t, v), nil
	}
}

// shiftHelper returns a routine shifting an n byte operand by a one byte amount.
func shiftHelper(op types.Opcode, n, w int) helper {
	t := types.Scalar(w)
	return func(mc *Machine, in []byte) ([]byte, error) {
		if len(in) != n+1 {
			return nil, fmt.Errorf("expected %d argument bytes, got %d", n+1, len(in))
		}
		return toBytes(t, shift(op, fromLE(in[:n]), uint64(in[n]), w)), nil
	}
}

// memcpyHelper implements memcpy and memmove: destination pointer, source pointer, 16-bit length.
func memcpyHelper(mc *Machine, in []byte) ([]byte, error) {
	if len(in) != 6 {
		return nil, fmt.Errorf("expected 6 argument bytes, got %d", len(in))
	}
	memmove(mc, uint16(fromLE(in[0:2])), uint16(fromLE(in[2:4])), int(fromLE(in[4:6])))
	return nil, nil
}

// memsetHelper implements memset: destination pointer, fill byte, 16-bit length.
func memsetHelper(mc *Machine, in []byte) ([]byte, error) {
	if len(in) != 5 {
		return nil, fmt.Errorf("expected 5 argument bytes, got %d", len(in))
	}
	memset(mc, uint16(fromLE(in[0:2])), in[2], int(fromLE(in[3:5])))
	return nil, nil
}

// memmove copies n bytes from src to dst, correct for overlapping ranges.
func memmove(mc *Machine, dst, src uint16, n int) {
	tmp := make([]byte, n)
	for i1 := range tmp {
		tmp[i1] = mc.Mem[src+uint16(i1)]
	}
	for i1, e1 := range tmp {
		mc.Mem[dst+uint16(i1)] = e1
	}
}

// memset fills n bytes at dst with v.
func memset(mc *Machine, dst uint16, v byte, n int) {
	for i1 := 0; i1 < n; i1++ {
		mc.Mem[dst+uint16(i1)] = v
	}
}
