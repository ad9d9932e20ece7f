package llvm

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/gmir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// term is a variable part of an address computation: the index value times scale.
type term struct {
	v     llvm.Value
	scale int64
}

// ---------------------
// ----- functions -----
// ---------------------

// typeOf returns the low-level type of LLVM type t. Floats keep their width so the legalizer can name them.
func typeOf(t llvm.Type) (types.LLT, error) {
	switch t.TypeKind() {
	case llvm.IntegerTypeKind:
		return types.Scalar(t.IntTypeWidth()), nil
	case llvm.PointerTypeKind:
		return types.P, nil
	case llvm.HalfTypeKind:
		return types.S16, nil
	case llvm.FloatTypeKind:
		return types.S32, nil
	case llvm.DoubleTypeKind:
		return types.S64, nil
	}
	return types.LLT{}, fmt.Errorf("unsupported type kind %d", t.TypeKind())
}

// sizeOf returns the size in bytes of LLVM type t. Aggregates are packed.
func sizeOf(t llvm.Type) (int, error) {
	switch t.TypeKind() {
	case llvm.IntegerTypeKind:
		return (t.IntTypeWidth() + 7) / 8, nil
	case llvm.PointerTypeKind:
		return types.PointerBits / 8, nil
	case llvm.HalfTypeKind:
		return 2, nil
	case llvm.FloatTypeKind:
		return 4, nil
	case llvm.DoubleTypeKind:
		return 8, nil
	case llvm.ArrayTypeKind:
		n, err := sizeOf(t.ElementType())
		return n * t.ArrayLength(), err
	case llvm.StructTypeKind:
		size := 0
		for _, e1 := range t.StructElementTypes() {
			n, err := sizeOf(e1)
			if err != nil {
				return 0, err
			}
			size += n
		}
		return size, nil
	}
	return 0, fmt.Errorf("type kind %d has no size", t.TypeKind())
}

// gepTerms splits the byte offset that the indices idx add to pointer base into a constant part and variable terms.
func gepTerms(base llvm.Value, idx []llvm.Value) (int64, []term, error) {
	if len(idx) == 0 {
		return 0, nil, nil
	}
	t := base.Type().ElementType()
	var off int64
	var terms []term

	scaled := func(v llvm.Value, t llvm.Type) error {
		size, err := sizeOf(t)
		if err != nil {
			return err
		}
		if c := v.IsAConstantInt(); !c.IsNil() {
			off += c.SExtValue() * int64(size)
		} else {
			terms = append(terms, term{v: v, scale: int64(size)})
		}
		return nil
	}

	if err := scaled(idx[0], t); err != nil {
		return 0, nil, err
	}
	for _, e1 := range idx[1:] {
		switch t.TypeKind() {
		case llvm.ArrayTypeKind:
			t = t.ElementType()
			if err := scaled(e1, t); err != nil {
				return 0, nil, err
			}
		case llvm.StructTypeKind:
			if e1.IsAConstantInt().IsNil() {
				return 0, nil, errors.New("struct field index must be constant")
			}
			fields := t.StructElementTypes()
			k := int(e1.ZExtValue())
			for _, e2 := range fields[:k] {
				n, err := sizeOf(e2)
				if err != nil {
					return 0, nil, err
				}
				off += int64(n)
			}
			t = fields[k]
		default:
			return 0, nil, fmt.Errorf("cannot index into type kind %d", t.TypeKind())
		}
	}
	return off, terms, nil
}

// buildFConstant materialises the floating point constant v as its IEEE bit pattern.
func buildFConstant(bd *gmir.Builder, t types.LLT, v llvm.Value) *gmir.Register {
	d, _ := v.DoubleValue()
	var imm int64
	switch t.SizeInBits() {
	case 32:
		imm = int64(math.Float32bits(float32(d)))
	default:
		imm = int64(math.Float64bits(d))
	}
	r := bd.Function().NewRegister(t)
	bd.BuildWith(types.FConstant, []*gmir.Register{r}, nil, gmir.Operands{Imm: imm, Part: gmir.ArgWhole})
	return r
}

// resize sign extends or truncates r to t.
func resize(bd *gmir.Builder, r *gmir.Register, t types.LLT) *gmir.Register {
	switch n := r.Type().SizeInBits(); {
	case n < t.SizeInBits():
		return bd.BuildCast(types.SExt, t, r)
	case n > t.SizeInBits():
		return bd.BuildCast(types.Trunc, t, r)
	}
	return r
}

// scale multiplies the s16 offset r by k, shifting when k is a power of two.
func scale(bd *gmir.Builder, r *gmir.Register, k int64) *gmir.Register {
	switch {
	case k == 1:
		return r
	case k > 0 && k&(k-1) == 0:
		return bd.BuildBinary(types.Shl, r, bd.BuildConstant(types.S8, int64(bits.TrailingZeros64(uint64(k)))))
	}
	return bd.BuildBinary(types.Mul, r, bd.BuildConstant(types.S16, k))
}
